package server

import (
	"net/http"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/nodes"

	"github.com/zenazn/goji/web"
)

func (s *Service) listNodesHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := viewportRequest{
		ProjectID:      f.mustInt64("project"),
		Z:              f.int("z", 0),
		Top:            f.int("top", 0),
		Left:           f.int("left", 0),
		Width:          f.int("width", 0),
		Height:         f.int("height", 0),
		ZRes:           f.int("zres", 1),
		ActiveSkeleton: f.int64("as", 0),
	}
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	found, err := nodes.ListNodes(r.Context(), s.db, nodes.Viewport(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, found)
}

func (s *Service) nearestNodeHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := projectRequest{ProjectID: f.mustInt64("project")}
	at := catvol.Point3d{
		X: f.float64("x", 0),
		Y: f.float64("y", 0),
		Z: f.float64("z", 0),
	}
	skeletonID := f.int64("skeleton_id", -1)
	neuronID := f.int64("neuron_id", -1)
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tn, err := nodes.NearestNode(r.Context(), s.db, req.ProjectID, at, skeletonID, neuronID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"treenode_id": tn.ID,
		"x":           tn.X,
		"y":           tn.Y,
		"z":           tn.Z,
		"skeleton_id": tn.SkeletonID,
	})
}

func readSkeleton(f *form) skeletonRequest {
	return skeletonRequest{
		ProjectID:  f.mustInt64("project"),
		SkeletonID: f.mustInt64("skeleton_id"),
	}
}

func (s *Service) ancestryHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := readSkeleton(f)
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ancestry, err := nodes.SkeletonAncestry(r.Context(), s.db, req.ProjectID, req.SkeletonID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ancestry)
}

func (s *Service) treeObjectPathHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := readSkeleton(f)
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	path, err := nodes.TreeObjectPath(r.Context(), s.db, req.ProjectID, req.SkeletonID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, path)
}

func (s *Service) skeletonRootHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := skeletonRequest{
		ProjectID:  f.mustInt64("project"),
		SkeletonID: f.mustInt64("skeleton"),
	}
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	root, err := nodes.SkeletonRoot(r.Context(), s.db, req.ProjectID, req.SkeletonID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"root_id": root.ID,
		"x":       root.X,
		"y":       root.Y,
		"z":       root.Z,
	})
}
