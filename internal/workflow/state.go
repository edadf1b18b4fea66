package workflow

import (
	"errors"

	"github.com/langerlad/bulk-ip-app/internal/domain"
)

type State string

const (
	StateIdle            State = "idle"
	StateInitializing    State = "initializing"
	StateReady           State = "ready"
	StateSubmitting      State = "submitting"
	StateResultsReady    State = "results_ready"
	StateSubmissionError State = "submission_error"
)

// SideAction records the last secondary action taken from the results
// surface. The state stays ResultsReady.
type SideAction string

const (
	SideNone             SideAction = ""
	SideRawTextRequested SideAction = "raw_text_requested"
	SideExportRequested  SideAction = "export_requested"
)

var (
	ErrBusy         = errors.New("workflow: another request is in flight")
	ErrInvalidState = errors.New("workflow: action not allowed in current state")
	ErrNoResults    = errors.New("workflow: no results available")
	ErrNoExport     = errors.New("workflow: export was not generated")
	ErrPopupBlocked = errors.New("workflow: raw text surface could not be opened")
)

const (
	messageEmptySubmission = "Please enter at least one IP address"
	messageInvalidIPs      = "Some IP addresses are invalid"
	messagePopupBlocked    = "Pop-up was blocked. Please allow pop-ups for this site."
	messageRawTextFailed   = "Could not generate raw text"
	messageNoResults       = "No results to display. Please submit the form again."
)

type NoticeLevel string

const (
	NoticeError NoticeLevel = "error"
	NoticeInfo  NoticeLevel = "info"
)

// Notice is a transient message shown once by the next rendered surface.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Failure describes the error surface. Fatal failures come from
// initialization and need a fresh visit of the form.
type Failure struct {
	Message    string
	InvalidIPs []string
	Fatal      bool
}

// Form is one submission of the entry form.
type Form struct {
	IPs      string
	CSV      bool
	HTML     bool
	Comments bool
}

// Snapshot is a copy of the controller state for rendering.
type Snapshot struct {
	State        State
	Draft        string
	APIUsage     *domain.ApiUsageStatus
	ClientIP     string
	Results      *domain.ResultSet
	ShowComments bool
	Visible      map[int]bool
	Failure      *Failure
	LastSide     SideAction
	Busy         bool
}
