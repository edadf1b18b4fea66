package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/langerlad/bulk-ip-app/internal/domain"
	"github.com/langerlad/bulk-ip-app/internal/ipparse"
	"github.com/langerlad/bulk-ip-app/internal/reputation"
)

// Client is the backend surface the controller drives.
type Client interface {
	Initialize(ctx context.Context) (*reputation.InitResult, error)
	CheckBatch(ctx context.Context, request domain.SubmissionRequest) (*domain.ResultSet, error)
	FetchRawText(ctx context.Context, ips []string, obfuscate bool) (string, error)
	DownloadExport(ctx context.Context, fileType reputation.ExportType, filename string) (*reputation.Export, error)
}

type DraftStore interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, text string) error
	Clear(ctx context.Context, key string) error
}

// Observer is told about every finished submission. Optional.
type Observer interface {
	ObserveSubmission(outcome string, addresses int, elapsed time.Duration)
}

// Opener hands raw text to the secondary surface. An error means the
// surface could not be opened.
type Opener func(content string) error

// Controller owns the workflow of one browser session. All methods are safe
// for concurrent use; only one backend request runs at a time.
type Controller struct {
	client   Client
	drafts   DraftStore
	draftKey string
	observer Observer

	submits singleflight.Group

	mu           sync.Mutex
	busy         bool
	state        State
	draft        string
	usage        *domain.ApiUsageStatus
	clientIP     string
	results      *domain.ResultSet
	showComments bool
	visible      map[int]bool
	failure      *Failure
	lastSide     SideAction
	notices      []Notice
}

func NewController(client Client, drafts DraftStore, draftKey string, observer Observer) *Controller {
	return &Controller{
		client:   client,
		drafts:   drafts,
		draftKey: draftKey,
		observer: observer,
		state:    StateIdle,
		visible:  make(map[int]bool),
	}
}

// Initialize restores the saved draft and announces the session to the
// backend. A failure is terminal for this visit.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.state = StateInitializing
	c.failure = nil
	c.results = nil
	c.visible = make(map[int]bool)
	c.lastSide = SideNone
	c.mu.Unlock()

	text, found, loadErr := c.drafts.Load(ctx, c.draftKey)
	if loadErr != nil {
		log.Warn("Could not load draft", "error", loadErr)
	}

	result, err := c.client.Initialize(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if found {
		c.draft = text
	}

	if err != nil {
		message := reputation.UserMessage(err)
		c.state = StateSubmissionError
		c.failure = &Failure{Message: message, Fatal: true}
		c.addNotice(NoticeError, message)
		return err
	}

	c.state = StateReady
	c.usage = result.APIUsage
	c.clientIP = result.ClientIP
	return nil
}

// EditDraft persists the full text of the entry field.
func (c *Controller) EditDraft(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.draft = text
	c.mu.Unlock()

	if err := c.drafts.Save(ctx, c.draftKey, text); err != nil {
		return fmt.Errorf("workflow: save draft: %w", err)
	}
	return nil
}

// Submit checks the addresses of form. Identical concurrent submissions
// share one backend call.
func (c *Controller) Submit(ctx context.Context, form Form) (*domain.ResultSet, error) {
	value, err, _ := c.submits.Do(submitKey(form), func() (any, error) {
		return c.submit(ctx, form)
	})
	if err != nil {
		return nil, err
	}
	return value.(*domain.ResultSet), nil
}

func (c *Controller) submit(ctx context.Context, form Form) (*domain.ResultSet, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.state != StateReady {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}
	if strings.TrimSpace(form.IPs) == "" {
		c.addNotice(NoticeError, messageEmptySubmission)
		c.mu.Unlock()
		return nil, domain.ErrEmptySubmission
	}

	parsed := ipparse.Parse(form.IPs)
	request, err := domain.NewSubmissionRequest(parsed.Addresses(), parsed.Invalid, form.CSV, form.HTML, form.Comments)
	if err != nil {
		c.addNotice(NoticeError, messageEmptySubmission)
		c.mu.Unlock()
		return nil, err
	}

	c.busy = true
	c.state = StateSubmitting
	c.draft = form.IPs
	c.mu.Unlock()

	if err := c.drafts.Save(ctx, c.draftKey, form.IPs); err != nil {
		log.Warn("Could not save draft", "error", err)
	}

	started := time.Now()
	results, err := c.client.CheckBatch(ctx, request)
	elapsed := time.Since(started)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if err != nil {
		var validationErr *reputation.ValidationError
		if errors.As(err, &validationErr) {
			c.failure = &Failure{Message: messageInvalidIPs, InvalidIPs: append([]string(nil), validationErr.InvalidIPs...)}
			c.observe("invalid", len(request.IPs), elapsed)
		} else {
			c.failure = &Failure{Message: reputation.UserMessage(err)}
			if reputation.IsTimeout(err) {
				c.observe("timeout", len(request.IPs), elapsed)
			} else {
				c.observe("error", len(request.IPs), elapsed)
			}
		}
		c.state = StateSubmissionError
		c.addNotice(NoticeError, reputation.UserMessage(err))
		log.Info("Submission failed", "addresses", len(request.IPs), "rejected", len(request.Rejected), "error", err)
		return nil, err
	}

	c.state = StateResultsReady
	c.results = results
	c.showComments = form.Comments
	c.visible = make(map[int]bool)
	c.failure = nil
	c.lastSide = SideNone
	if results.APIUsage != nil {
		c.usage = results.APIUsage
	}
	if results.ClientIP != "" {
		c.clientIP = results.ClientIP
	}

	c.observe("success", len(request.IPs), elapsed)
	log.Info("Submission checked", "addresses", len(request.IPs), "records", len(results.Data), "elapsed", elapsed)
	return results, nil
}

// ToggleComments flips the comment panel of one record and returns whether
// it is now open.
func (c *Controller) ToggleComments(index int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateResultsReady || c.results == nil {
		return false, ErrNoResults
	}
	if index < 0 || index >= len(c.results.Data) {
		return false, fmt.Errorf("workflow: record index %d out of range", index)
	}

	c.visible[index] = !c.visible[index]
	return c.visible[index], nil
}

// ViewRaw fetches the obfuscated raw listing of the current results and
// passes it to opener.
func (c *Controller) ViewRaw(ctx context.Context, opener Opener) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state != StateResultsReady || c.results == nil {
		c.mu.Unlock()
		return ErrNoResults
	}
	addresses := c.results.Addresses()
	c.busy = true
	c.lastSide = SideRawTextRequested
	c.mu.Unlock()

	content, err := c.client.FetchRawText(ctx, addresses, reputation.DefaultObfuscate)

	var openErr error
	if err == nil {
		openErr = opener(content)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if err != nil {
		c.addNotice(NoticeError, messageRawTextFailed)
		return err
	}
	if openErr != nil {
		c.addNotice(NoticeError, messagePopupBlocked)
		return fmt.Errorf("%w: %v", ErrPopupBlocked, openErr)
	}
	return nil
}

// Download opens the export stream of the given type. The caller closes the
// returned body.
func (c *Controller) Download(ctx context.Context, fileType reputation.ExportType) (*reputation.Export, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.state != StateResultsReady || c.results == nil {
		c.mu.Unlock()
		return nil, ErrNoResults
	}

	filename, ok := c.results.ExportFilename(string(fileType))
	if !ok {
		label := fileType.Label()
		c.addNotice(NoticeError, fmt.Sprintf("No %s file available. Please regenerate the report with %s option enabled.", label, label))
		c.mu.Unlock()
		return nil, ErrNoExport
	}
	c.busy = true
	c.lastSide = SideExportRequested
	c.mu.Unlock()

	export, err := c.client.DownloadExport(ctx, fileType, filename)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if err != nil {
		c.addNotice(NoticeError, fmt.Sprintf("Could not download %s file. Please try again.", fileType.Label()))
		return nil, err
	}
	return export, nil
}

// RequireResults returns a snapshot when results are available and queues
// the missing-results notice otherwise.
func (c *Controller) RequireResults() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateResultsReady || c.results == nil {
		c.addNotice(NoticeError, messageNoResults)
		return Snapshot{}, ErrNoResults
	}
	return c.snapshotLocked(), nil
}

// Close discards the persisted draft. It is best effort.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.draft = ""
	c.mu.Unlock()

	if err := c.drafts.Clear(ctx, c.draftKey); err != nil {
		return fmt.Errorf("workflow: clear draft: %w", err)
	}
	return nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// TakeNotices drains the pending notices.
func (c *Controller) TakeNotices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	notices := c.notices
	c.notices = nil
	return notices
}

func (c *Controller) snapshotLocked() Snapshot {
	visible := make(map[int]bool, len(c.visible))
	for index, open := range c.visible {
		if open {
			visible[index] = true
		}
	}

	var failure *Failure
	if c.failure != nil {
		copied := *c.failure
		copied.InvalidIPs = append([]string(nil), c.failure.InvalidIPs...)
		failure = &copied
	}

	return Snapshot{
		State:        c.state,
		Draft:        c.draft,
		APIUsage:     c.usage,
		ClientIP:     c.clientIP,
		Results:      c.results,
		ShowComments: c.showComments,
		Visible:      visible,
		Failure:      failure,
		LastSide:     c.lastSide,
		Busy:         c.busy,
	}
}

// Notify queues a notice raised outside the controller's own actions.
func (c *Controller) Notify(level NoticeLevel, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addNotice(level, message)
}

func (c *Controller) addNotice(level NoticeLevel, message string) {
	c.notices = append(c.notices, Notice{Level: level, Message: message})
}

func (c *Controller) observe(outcome string, addresses int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveSubmission(outcome, addresses, elapsed)
	}
}

func submitKey(form Form) string {
	return strconv.FormatBool(form.CSV) + strconv.FormatBool(form.HTML) + strconv.FormatBool(form.Comments) + "\x00" + form.IPs
}
