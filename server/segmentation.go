package server

import (
	"image/color"
	"net/http"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/componenttree"
	"github.com/janelia-flyem/catvol/segment"

	"github.com/zenazn/goji/web"
)

func (s *Service) tree(req stackRequest) *componenttree.Tree {
	return componenttree.New(s.kv, req.ProjectID, req.StackID)
}

func (s *Service) componentsAtHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := locationRequest{
		stackRequest: readStack(f),
		X:            f.int32("x", 0),
		Y:            f.int32("y", 0),
		Z:            f.int32("z", 0),
		Limit:        f.int("limit", componenttree.DefaultLimit),
	}
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	matches, err := s.tree(req.stackRequest).FindComponentsAt(req.X, req.Y, req.Z, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, matches.AsMap())
}

func (s *Service) componentImageHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := componentRequest{
		stackRequest: readStack(f),
		ID:           f.mustInt64("id"),
		Z:            f.int32("z", 0),
		Red:          f.int("red", 255),
		Green:        f.int("green", 255),
		Blue:         f.int("blue", 255),
		Alpha:        f.int("alpha", 255),
	}
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fill := color.NRGBA{R: uint8(req.Red), G: uint8(req.Green), B: uint8(req.Blue), A: uint8(req.Alpha)}
	data, err := s.tree(req.stackRequest).ComponentImage(req.ID, req.Z, fill)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func readScope(f *form) scopeRequest {
	return scopeRequest{
		stackRequest: readStack(f),
		SkeletonID:   f.mustInt64("skeleton_id"),
		Z:            f.int32("z", 0),
	}
}

func (req scopeRequest) scope() segment.Scope {
	return segment.Scope{
		ProjectID:  req.ProjectID,
		StackID:    req.StackID,
		SkeletonID: req.SkeletonID,
		Z:          req.Z,
	}
}

func (s *Service) savedComponentsHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := readScope(f)
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.segments.SavedComponents(r.Context(), req.scope())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, saved)
}

func (s *Service) putComponentsHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := readScope(f)
	payload := f.required("components")
	user := f.userID()
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	selection, err := segment.ParseSelection([]byte(payload))
	if err != nil {
		writeError(w, r, err)
		return
	}
	inserted, removed, err := s.segments.PutComponents(r.Context(), req.scope(), user, selection)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"inserted": inserted, "removed": removed})
}

func (s *Service) initializeComponentsHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := readScope(f)
	user := f.userID()
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	timedLog := catvol.NewTimeLog()
	created, err := s.segments.InitializeComponents(r.Context(), req.ProjectID, req.StackID, req.SkeletonID, user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	timedLog.Infof("Initialized %d components for skeleton %d", created, req.SkeletonID)
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"status": "success", "created": created})
}

func (s *Service) drawingsByComponentHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := readScope(f)
	componentID := f.mustInt64("component_id")
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	drawings, err := s.segments.DrawingsByComponent(r.Context(), req.scope(), componentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, drawings)
}

func (s *Service) drawingsByViewHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := readStack(f)
	z := f.int32("z", 0)
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	drawings, err := s.segments.DrawingsByView(r.Context(), req.ProjectID, req.StackID, z)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, drawings)
}

func (s *Service) putDrawingHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := readStack(f)
	payload := f.required("drawing")
	skeletonID := f.optInt64("skeleton_id")
	z := f.int32("z", 0)
	user := f.userID()
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := segment.ParseDrawing([]byte(payload))
	if err != nil {
		writeError(w, r, err)
		return
	}
	d.ProjectID, d.StackID, d.SkeletonID, d.Z, d.UserID = req.ProjectID, req.StackID, skeletonID, z, user
	id, err := s.segments.PutDrawing(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int64{"id": id})
}

func (s *Service) deleteDrawingHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := readStack(f)
	id := f.mustInt64("id")
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.segments.DeleteDrawing(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, true)
}

func drawingTypesHandler(w http.ResponseWriter, r *http.Request) {
	data, err := catvol.DrawingTypesJSON()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
