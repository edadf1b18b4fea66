package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/flosch/pongo2/v6"

	"github.com/langerlad/bulk-ip-app/internal/geolite"
	"github.com/langerlad/bulk-ip-app/internal/metrics"
	"github.com/langerlad/bulk-ip-app/internal/session"
	"github.com/langerlad/bulk-ip-app/internal/workflow"
)

//go:embed templates/*.html static/*
var assets embed.FS

// Dependencies are the collaborators the web surface drives.
type Dependencies struct {
	Manager  *workflow.Manager
	Sessions *session.Sessions
	Locator  *geolite.Locator
	Metrics  *metrics.Collector
	Location *time.Location
	Debug    bool
	Now      func() time.Time
}

type Server struct {
	deps      Dependencies
	templates *pongo2.TemplateSet
	rawDocs   *rawStore
	handler   http.Handler
}

func New(deps Dependencies) (*Server, error) {
	if deps.Manager == nil || deps.Sessions == nil {
		return nil, errors.New("server: manager and sessions are required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}

	templateFS, err := fs.Sub(assets, "templates")
	if err != nil {
		return nil, fmt.Errorf("server: templates: %w", err)
	}
	loader, err := pongo2.NewHttpFileSystemLoader(http.FS(templateFS), "")
	if err != nil {
		return nil, fmt.Errorf("server: template loader: %w", err)
	}
	templates := pongo2.NewSet("bulkip", loader)
	templates.Debug = deps.Debug

	for _, name := range []string{"form.html", "results.html", "error.html", "raw.html"} {
		if _, err := templates.FromCache(name); err != nil {
			return nil, fmt.Errorf("server: parse %s: %w", name, err)
		}
	}

	s := &Server{
		deps:      deps,
		templates: templates,
		rawDocs:   newRawStore(rawDocumentTTL),
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	staticFS, _ := fs.Sub(assets, "static")
	router := http.NewServeMux()

	page := func(pattern string, handler http.HandlerFunc) {
		router.Handle(pattern, s.deps.Sessions.Middleware(handler))
	}

	page("GET /{$}", s.showForm)
	page("POST /draft", s.saveDraft)
	page("POST /check", s.checkAddresses)
	page("GET /results", s.showResults)
	page("POST /results/{index}/comments", s.toggleComments)
	page("POST /raw", s.requestRawText)
	page("GET /raw/{token}", s.showRawText)
	page("GET /raw/{token}/pdf", s.printRawText)
	page("GET /download/{type}", s.downloadExport)
	page("GET /error", s.showError)
	page("POST /session/close", s.closeSession)

	router.HandleFunc("GET /healthz", s.health)
	router.HandleFunc("GET /version", getVersion)
	router.Handle("GET /metrics", s.deps.Metrics.Handler())
	router.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	router.HandleFunc("/", redirectHome)

	log.Debug("Routes opened")
	return s.logRequests(router)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.deps.Manager.Len(),
	})
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		elapsed := time.Since(started)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.deps.Metrics.ObserveHTTP(route, recorder.status, elapsed)

		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/static/") {
			return
		}
		log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", recorder.status, "elapsed", elapsed)
	})
}

// Shutdown drops the registered raw text documents.
func (s *Server) Shutdown(context.Context) error {
	s.rawDocs.flush()
	return nil
}
