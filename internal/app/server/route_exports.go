package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/flosch/pongo2/v6"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/langerlad/bulk-ip-app/internal/printer"
	"github.com/langerlad/bulk-ip-app/internal/reputation"
	"github.com/langerlad/bulk-ip-app/internal/session"
	"github.com/langerlad/bulk-ip-app/internal/workflow"
)

const (
	rawDocumentTTL   = 15 * time.Minute
	rawDocumentTitle = "Raw IP Addresses"
)

var errWindowNotOpened = errors.New("browser did not open a window")

type rawDocument struct {
	SessionID string
	Content   string
	Created   time.Time
}

// rawStore holds raw text documents until their window loads them.
type rawStore struct {
	docs *cache.Cache
}

func newRawStore(ttl time.Duration) *rawStore {
	return &rawStore{docs: cache.New(ttl, ttl)}
}

func (s *rawStore) put(doc rawDocument) string {
	token := uuid.NewString()
	s.docs.SetDefault(token, doc)
	return token
}

func (s *rawStore) get(token, sessionID string) (rawDocument, bool) {
	value, ok := s.docs.Get(token)
	if !ok {
		return rawDocument{}, false
	}
	doc := value.(rawDocument)
	if doc.SessionID != sessionID {
		return rawDocument{}, false
	}
	return doc, true
}

func (s *rawStore) flush() {
	s.docs.Flush()
}

// requestRawText registers the raw listing of the current results and
// answers with the URL the already opened window should load.
func (s *Server) requestRawText(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := session.FromContext(r.Context())
	controller := s.controller(r)
	windowOpened := r.URL.Query().Get("window") != "blocked"

	var url string
	err := controller.ViewRaw(r.Context(), func(content string) error {
		if !windowOpened {
			return errWindowNotOpened
		}
		token := s.rawDocs.put(rawDocument{SessionID: sessionID, Content: content, Created: s.deps.Now()})
		url = "/raw/" + token
		return nil
	})

	if err != nil {
		notices := controller.TakeNotices()
		message := "Could not generate raw text"
		if len(notices) > 0 {
			message = notices[len(notices)-1].Message
		}

		status := http.StatusBadGateway
		switch {
		case errors.Is(err, workflow.ErrPopupBlocked):
			status = http.StatusConflict
		case errors.Is(err, workflow.ErrNoResults):
			status = http.StatusConflict
			message = "No results to display. Please submit the form again."
		case errors.Is(err, workflow.ErrBusy):
			status = http.StatusTooManyRequests
			message = busyMessage
		}
		writeError(w, message, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) showRawText(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := session.FromContext(r.Context())
	doc, ok := s.rawDocs.get(r.PathValue("token"), sessionID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.render(w, http.StatusOK, "raw.html", pongo2.Context{
		"title":   rawDocumentTitle,
		"content": doc.Content,
		"token":   r.PathValue("token"),
	})
}

func (s *Server) printRawText(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := session.FromContext(r.Context())
	doc, ok := s.rawDocs.get(r.PathValue("token"), sessionID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := printer.RenderPDF(rawDocumentTitle, doc.Content, doc.Created)
	if err != nil {
		log.Error("Could not render raw text PDF", "error", err)
		http.Error(w, "Could not render PDF", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="ip_addresses.pdf"`)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (s *Server) downloadExport(w http.ResponseWriter, r *http.Request) {
	fileType, err := reputation.ParseExportType(r.PathValue("type"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	export, err := s.controller(r).Download(r.Context(), fileType)
	if err != nil {
		if !errors.Is(err, workflow.ErrNoExport) {
			log.Warn("Export download failed", "type", fileType, "error", err)
		}
		if errors.Is(err, workflow.ErrNoResults) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/results", http.StatusSeeOther)
		return
	}
	defer export.Body.Close()

	w.Header().Set("Content-Type", fileType.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Name))
	w.Header().Set("Cache-Control", "no-store")

	written, err := io.Copy(w, export.Body)
	if err != nil {
		log.Warn("Export stream interrupted", "type", fileType, "written", written, "error", err)
		return
	}
	log.Debug("Export delivered", "type", strings.ToUpper(string(fileType)), "bytes", written)
}
