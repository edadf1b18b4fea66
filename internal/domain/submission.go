package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrEmptySubmission = errors.New("domain: submission contains no addresses")

// IpCandidate is one non-empty input line.
type IpCandidate struct {
	Raw   string
	Text  string
	Valid bool
}

// SubmissionRequest carries the unique, syntactically valid addresses and
// the lines the local parser rejected. Rejected lines are still forwarded so
// the backend stays the authority on validity.
type SubmissionRequest struct {
	IPs             []string
	Rejected        []string
	CSV             bool
	HTML            bool
	IncludeComments bool
}

func NewSubmissionRequest(ips, rejected []string, csv, html, comments bool) (SubmissionRequest, error) {
	if len(ips) == 0 && len(rejected) == 0 {
		return SubmissionRequest{}, ErrEmptySubmission
	}
	return SubmissionRequest{
		IPs:             append([]string(nil), ips...),
		Rejected:        append([]string(nil), rejected...),
		CSV:             csv,
		HTML:            html,
		IncludeComments: comments,
	}, nil
}

// Text is the newline-joined list sent as the "ips" field.
func (r SubmissionRequest) Text() string {
	lines := make([]string, 0, len(r.IPs)+len(r.Rejected))
	lines = append(lines, r.IPs...)
	lines = append(lines, r.Rejected...)
	return strings.Join(lines, "\n")
}

func (r SubmissionRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		IPs      string `json:"ips"`
		CSV      bool   `json:"csv"`
		HTML     bool   `json:"html"`
		Comments bool   `json:"comments"`
	}{
		IPs:      r.Text(),
		CSV:      r.CSV,
		HTML:     r.HTML,
		Comments: r.IncludeComments,
	})
}
