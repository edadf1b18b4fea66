package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/flosch/pongo2/v6"

	"github.com/langerlad/bulk-ip-app/internal/app/version"
	"github.com/langerlad/bulk-ip-app/internal/domain"
	"github.com/langerlad/bulk-ip-app/internal/render"
	"github.com/langerlad/bulk-ip-app/internal/session"
	"github.com/langerlad/bulk-ip-app/internal/workflow"
)

const (
	hostnameLookupTimeout = 500 * time.Millisecond
	busyMessage           = "A request is already in progress. Please wait for it to finish."
)

func (s *Server) controller(r *http.Request) *workflow.Controller {
	sessionID, _ := session.FromContext(r.Context())
	return s.deps.Manager.Controller(sessionID)
}

func (s *Server) clock() render.Clock {
	return render.Clock{Now: s.deps.Now(), Location: s.deps.Location}
}

func (s *Server) statusView(ctx context.Context, usage *domain.ApiUsageStatus, clientIP string) render.StatusView {
	country := "N/A"
	host := ""
	if s.deps.Locator != nil && clientIP != "" {
		country = s.deps.Locator.CountryCode(clientIP)

		lookupCtx, cancel := context.WithTimeout(ctx, hostnameLookupTimeout)
		host = s.deps.Locator.Hostname(lookupCtx, clientIP)
		cancel()
	}

	view := render.RenderStatus(usage, clientIP, country)
	view.ClientHost = host
	return view
}

func (s *Server) showForm(w http.ResponseWriter, r *http.Request) {
	controller := s.controller(r)

	err := controller.Initialize(r.Context())
	switch {
	case errors.Is(err, workflow.ErrBusy):
		controller.Notify(workflow.NoticeInfo, busyMessage)
	case err != nil:
		log.Warn("Initialization failed", "error", err)
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}

	snapshot := controller.Snapshot()
	s.render(w, http.StatusOK, "form.html", pongo2.Context{
		"title":   "IP Address Checker",
		"notices": controller.TakeNotices(),
		"status":  s.statusView(r.Context(), snapshot.APIUsage, snapshot.ClientIP),
		"usage":   snapshot.APIUsage,
		"draft":   snapshot.Draft,
		"busy":    snapshot.Busy,
	})
}

func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	err := s.controller(r).EditDraft(r.Context(), r.PostForm.Get("ips"))
	switch {
	case errors.Is(err, workflow.ErrInvalidState):
		writeError(w, "Form is not ready", http.StatusConflict)
	case err != nil:
		log.Warn("Could not save draft", "error", err)
		writeError(w, "Could not save draft", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) checkAddresses(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	form := workflow.Form{
		IPs:      r.PostForm.Get("ips"),
		CSV:      checkbox(r, "csv"),
		HTML:     checkbox(r, "html"),
		Comments: checkbox(r, "comments"),
	}

	controller := s.controller(r)
	_, err := controller.Submit(r.Context(), form)
	if errors.Is(err, workflow.ErrInvalidState) {
		// A stale form was posted from a surface other than the ready form.
		if initErr := controller.Initialize(r.Context()); initErr != nil {
			http.Redirect(w, r, "/error", http.StatusSeeOther)
			return
		}
		_, err = controller.Submit(r.Context(), form)
	}

	switch {
	case err == nil:
		http.Redirect(w, r, "/results", http.StatusSeeOther)
	case errors.Is(err, domain.ErrEmptySubmission):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, workflow.ErrBusy):
		controller.Notify(workflow.NoticeInfo, busyMessage)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		http.Redirect(w, r, "/error", http.StatusSeeOther)
	}
}

func (s *Server) showResults(w http.ResponseWriter, r *http.Request) {
	controller := s.controller(r)

	snapshot, err := controller.RequireResults()
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	view := render.RenderResults(snapshot.Results, snapshot.ShowComments, snapshot.Visible, "N/A", s.clock())
	view.Status = s.statusView(r.Context(), snapshot.APIUsage, snapshot.ClientIP)

	s.render(w, http.StatusOK, "results.html", pongo2.Context{
		"title":   "IP Check Results",
		"notices": controller.TakeNotices(),
		"status":  view.Status,
		"view":    view,
	})
}

func (s *Server) toggleComments(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, "Invalid record index", http.StatusBadRequest)
		return
	}

	open, err := s.controller(r).ToggleComments(index)
	if wantsJSON(r) {
		switch {
		case errors.Is(err, workflow.ErrNoResults):
			writeError(w, "No results to display", http.StatusConflict)
		case err != nil:
			writeError(w, err.Error(), http.StatusBadRequest)
		default:
			writeJSON(w, http.StatusOK, map[string]bool{"open": open})
		}
		return
	}

	if err != nil {
		http.Redirect(w, r, "/results", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/results#record-"+strconv.Itoa(index), http.StatusSeeOther)
}

func (s *Server) showError(w http.ResponseWriter, r *http.Request) {
	controller := s.controller(r)
	snapshot := controller.Snapshot()

	failure := snapshot.Failure
	if failure == nil {
		failure = &workflow.Failure{Message: "Unknown error"}
	}

	s.render(w, http.StatusOK, "error.html", pongo2.Context{
		"title":   "Error",
		"notices": controller.TakeNotices(),
		"failure": failure,
	})
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := session.FromContext(r.Context())
	if controller, ok := s.deps.Manager.Lookup(sessionID); ok {
		if err := controller.Close(r.Context()); err != nil {
			log.Warn("Could not clear draft", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data pongo2.Context) {
	tpl, err := s.templates.FromCache(name)
	if err != nil {
		log.Error("Template lookup failed", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if _, ok := data["version"]; !ok {
		data["version"] = version.Get().Label()
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteWriter(data, &buf); err != nil {
		log.Error("Template execution failed", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func checkbox(r *http.Request, name string) bool {
	switch r.PostForm.Get(name) {
	case "on", "true", "1":
		return true
	default:
		return false
	}
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json"
}
