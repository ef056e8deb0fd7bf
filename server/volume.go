package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/storage"
	"github.com/janelia-flyem/catvol/tiles"

	humanize "github.com/dustin/go-humanize"
	"github.com/zenazn/goji/web"
)

func (s *Service) buildVolumeHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	req := readStack(f)
	skeletonID := f.optInt64("skeleton_id")
	if err := s.check(f, &req); err != nil {
		writeError(w, r, err)
		return
	}

	lim, err := s.builds.Get(r.Context(), clientKey(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lim.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lim.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lim.Reset, 10))
	if lim.Reached {
		writeStatus(w, r, http.StatusTooManyRequests, "volume build rate limit exceeded, retry later")
		return
	}

	manifest, err := s.assembler.BuildVolume(r.Context(), req.ProjectID, req.StackID, skeletonID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, manifest)
}

func (s *Service) getTileHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	stack := readStack(f)
	req := tiles.Request{
		ProjectID: stack.ProjectID,
		StackID:   stack.StackID,
		Scale:     f.int("scale", 0),
		Width:     f.int("width", 0),
		Height:    f.int("height", 0),
		X:         f.int("x", 0),
		Y:         f.int("y", 0),
		Z:         f.int32("z", 0),
		Type:      f.str("type", ""),
		HDF5Path:  f.str("hdf5_path", "/"),
		Format:    f.str("file_extension", "png"),
		Row:       f.str("row", ""),
		Col:       f.str("col", ""),
	}
	if err := s.check(f, &stack); err != nil {
		writeError(w, r, err)
		return
	}
	data, contentType, err := s.tiles.GetTile(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func (s *Service) putTileHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	f := newForm(c, r)
	stack := readStack(f)
	req := tiles.PutRequest{
		ProjectID: stack.ProjectID,
		StackID:   stack.StackID,
		Scale:     f.int("scale", 0),
		Width:     f.int("width", 0),
		Height:    f.int("height", 0),
		X:         f.int("x", 0),
		Y:         f.int("y", 0),
		Z:         f.int32("z", 0),
		Image:     f.required("image"),
		Row:       f.str("row", ""),
		Col:       f.str("col", ""),
	}
	if err := s.check(f, &stack); err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := s.tiles.PutTile(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(msg))
}

type serverInfo struct {
	Version     string   `json:"version"`
	GitVersion  string   `json:"git_version"`
	Host        string   `json:"host"`
	Note        string   `json:"note,omitempty"`
	Store       string   `json:"store"`
	Engines     []string `json:"engines"`
	Started     string   `json:"started"`
	Uptime      string   `json:"uptime"`
	TileHits    int64    `json:"tile_cache_hits"`
	TileMisses  int64    `json:"tile_cache_misses"`
	TileCache   string   `json:"tile_cache_size"`
	KafkaTopic  string   `json:"kafka_topic,omitempty"`
	Workspace   int64    `json:"classification_workspace"`
	BuildPerMin int      `json:"builds_per_minute"`
}

func (s *Service) serverInfoHandler(w http.ResponseWriter, r *http.Request) {
	hits, misses := s.tiles.CacheStats()
	info := serverInfo{
		Version:     Version,
		GitVersion:  gitVersion,
		Host:        s.opts.Host,
		Note:        s.opts.Note,
		Store:       s.kv.String(),
		Engines:     storage.EnginesAvailable(),
		Started:     s.started.Format(time.RFC3339),
		Uptime:      humanize.RelTime(s.started, time.Now(), "", ""),
		TileHits:    hits,
		TileMisses:  misses,
		TileCache:   humanize.Bytes(uint64(s.opts.TileCacheBytes)),
		KafkaTopic:  storage.KafkaActivityTopic(),
		Workspace:   s.opts.Workspace,
		BuildPerMin: s.opts.BuildsPerMinute,
	}
	catvol.Debugf("Server info requested from %s\n", clientKey(r))
	writeJSON(w, r, http.StatusOK, info)
}
