package server

import (
	"errors"
	"net/http"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/classification"
)

type tagGroupRequest struct {
	Workspace int64 `validate:"gte=0"`
	classification.Options
}

func (s *Service) readTagGroups(f *form) tagGroupRequest {
	return tagGroupRequest{
		Workspace: f.int64("workspace", s.opts.Workspace),
		Options: classification.Options{
			AddSupersets:          f.bool("add_supersets", true),
			RespectSupersetGraphs: f.bool("respect_superset_graphs", false),
		},
	}
}

type tagGroupView struct {
	classification.TagGroup
	Description string `json:"description"`
}

func (s *Service) tagGroupsHandler(w http.ResponseWriter, r *http.Request) {
	f := newForm(emptyC, r)
	req := s.readTagGroups(f)
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	groups, err := classification.TagGroups(r.Context(), s.db, req.Workspace, req.Options)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]tagGroupView, len(groups))
	for i := range groups {
		views[i] = tagGroupView{TagGroup: groups[i], Description: groups[i].Description()}
	}
	writeJSON(w, r, http.StatusOK, views)
}

type linkResult struct {
	Linked int              `json:"linked"`
	Failed map[int64]string `json:"failed,omitempty"`
}

func (s *Service) linkHandler(w http.ResponseWriter, r *http.Request) {
	f := newForm(emptyC, r)
	req := s.readTagGroups(f)
	names := f.strings("tag_groups")
	user := f.userID()
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}
	groups, err := classification.TagGroups(r.Context(), s.db, req.Workspace, req.Options)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(names) != 0 {
		if groups, err = classification.Select(groups, names); err != nil {
			writeError(w, r, err)
			return
		}
	}
	linked, err := classification.ApplyLinks(r.Context(), s.db, user, groups)
	var partial *catvol.PartialFailure
	switch {
	case errors.As(err, &partial):
		writeJSON(w, r, statusOf(err), linkResult{Linked: linked, Failed: partial.Failed()})
	case err != nil:
		writeError(w, r, err)
	default:
		writeJSON(w, r, http.StatusOK, linkResult{Linked: linked})
	}
}
