package reputation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	connectFallbackMessage = "Could not connect to the server"
	checkFallbackMessage   = "An error occurred while processing your request"
	rawTextFallbackMessage = "Could not generate raw text"
	invalidIPsMessage      = "Some IP addresses are invalid"
)

// ConnectionError is returned by Initialize when the backend is unreachable
// or answers with a non-2xx status.
type ConnectionError struct {
	Status  int
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("reputation: connect failed with status %d: %s", e.Status, e.Message)
	}
	return "reputation: connect failed: " + e.Message
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ValidationError means the backend rejected one or more submitted addresses.
type ValidationError struct {
	InvalidIPs []string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("reputation: %d invalid address(es): %s", len(e.InvalidIPs), e.Message)
}

// APIError covers every other non-2xx answer and transport failure.
type APIError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("reputation: %s failed with status %d: %s", e.Op, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("reputation: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("reputation: %s failed: %s", e.Op, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// TimeoutError is displayed like an APIError but stays distinguishable.
type TimeoutError struct {
	Op      string
	After   time.Duration
	Message string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("reputation: %s timed out after %s", e.Op, e.After)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// NotFoundError is returned when a requested export artifact does not exist.
type NotFoundError struct {
	FileType string
	Filename string
	Message  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reputation: %s export %q not found", e.FileType, e.Filename)
}

func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// UserMessage returns the text suitable for display for any error produced by
// the client.
func UserMessage(err error) string {
	var (
		connErr     *ConnectionError
		validErr    *ValidationError
		apiErr      *APIError
		timeoutErr  *TimeoutError
		notFoundErr *NotFoundError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &connErr):
		return connErr.Message
	case errors.As(err, &validErr):
		return validErr.Message
	case errors.As(err, &timeoutErr):
		return timeoutErr.Message
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &notFoundErr):
		return notFoundErr.Message
	default:
		return checkFallbackMessage
	}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
