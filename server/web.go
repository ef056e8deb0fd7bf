package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/janelia-flyem/catvol/catvol"

	"github.com/rs/cors"
	"github.com/zenazn/goji/web"
	"github.com/zenazn/goji/web/middleware"
)

// WebAPIPath is the prefix of all HTTP API routes.
const WebAPIPath = "/api/"

func (s *Service) routes() *web.Mux {
	mux := web.New()
	mux.Use(middleware.RequestID)
	mux.Use(recoverer)
	mux.Use(logRequest)
	if len(s.opts.CorsDomains) != 0 {
		mux.Use(cors.New(cors.Options{
			AllowedOrigins:   s.opts.CorsDomains,
			AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowCredentials: true,
		}).Handler)
	}

	mux.Get("/api/server/info", s.serverInfoHandler)
	mux.Get("/api/drawing-types", drawingTypesHandler)
	mux.Get("/api/classification/taggroups", s.tagGroupsHandler)
	mux.Post("/api/classification/taggroups", s.tagGroupsHandler)
	mux.Post("/api/classification/link", s.linkHandler)

	mux.Get("/api/:project/nodes", s.listNodesHandler)
	mux.Post("/api/:project/nodes/nearest", s.nearestNodeHandler)
	mux.Post("/api/:project/skeleton/ancestry", s.ancestryHandler)
	mux.Post("/api/:project/skeleton/path", s.treeObjectPathHandler)
	mux.Get("/api/:project/skeleton/:skeleton/root", s.skeletonRootHandler)

	mux.Get("/api/:project/:stack/components/at", s.componentsAtHandler)
	mux.Get("/api/:project/:stack/components/image", s.componentImageHandler)
	mux.Get("/api/:project/:stack/components/saved", s.savedComponentsHandler)
	mux.Post("/api/:project/:stack/components/put", s.putComponentsHandler)
	mux.Post("/api/:project/:stack/components/initialize", s.initializeComponentsHandler)

	mux.Get("/api/:project/:stack/drawings/component", s.drawingsByComponentHandler)
	mux.Get("/api/:project/:stack/drawings/view", s.drawingsByViewHandler)
	mux.Post("/api/:project/:stack/drawings/put", s.putDrawingHandler)
	mux.Post("/api/:project/:stack/drawings/delete", s.deleteDrawingHandler)

	mux.Post("/api/:project/:stack/volume/build", s.buildVolumeHandler)
	mux.Get("/api/:project/:stack/tile", s.getTileHandler)
	mux.Post("/api/:project/:stack/tile", s.putTileHandler)

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusNotFound, fmt.Sprintf("no API route for %s %s", r.Method, r.URL.Path))
	})
	mux.Compile()
	return mux
}

// recoverer turns a handler panic into a 500 response.
func recoverer(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if e := recover(); e != nil {
				catvol.Criticalf("Panic serving %s %s [%s]: %v\n", r.Method, r.URL, middleware.GetReqID(*c), e)
				writeStatus(w, r, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", e))
			}
		}()
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func logRequest(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		timedLog := catvol.NewTimeLog()
		h.ServeHTTP(w, r)
		timedLog.Debugf("%s %s [%s]", r.Method, r.URL, middleware.GetReqID(*c))
	}
	return http.HandlerFunc(fn)
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// BadRequest writes a 400 error with a message and logs it.
func BadRequest(w http.ResponseWriter, r *http.Request, format interface{}, args ...interface{}) {
	var msg string
	switch v := format.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = fmt.Sprintf(v, args...)
	default:
		msg = fmt.Sprintf("%v", v)
	}
	catvol.Errorf("%s [%s]: %s\n", r.Method, r.URL, msg)
	writeStatus(w, r, http.StatusBadRequest, msg)
}

// statusOf maps the error taxonomy onto HTTP statuses.
func statusOf(err error) int {
	var partial *catvol.PartialFailure
	var cycle catvol.CycleSuspected
	switch {
	case catvol.IsValidation(err):
		return http.StatusBadRequest
	case catvol.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &cycle):
		return http.StatusConflict
	case errors.As(err, &partial):
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	switch status {
	case http.StatusBadRequest:
		BadRequest(w, r, err)
		return
	case http.StatusNotFound:
		catvol.Infof("%s [%s]: %v\n", r.Method, r.URL, err)
	default:
		catvol.Errorf("%s [%s]: %v\n", r.Method, r.URL, err)
	}
	writeStatus(w, r, status, err.Error())
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, fmt.Errorf("could not encode response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// clientKey identifies a client for rate limiting.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
