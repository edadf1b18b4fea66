package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/langerlad/bulk-ip-app/internal/domain"
)

// DefaultObfuscate is the obfuscation flag used when viewing raw text.
const DefaultObfuscate = true

const (
	endpointInit     = "init"
	endpointCheck    = "check"
	endpointRawText  = "raw-text"
	endpointDownload = "download"
)

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Proxy   string
	// Observer is notified after every backend call. Optional.
	Observer Observer
}

// Observer receives one call per finished backend request. outcome is the
// HTTP status code as text, or "error"/"timeout" when no response arrived.
type Observer interface {
	ObserveBackendCall(endpoint, outcome string, elapsed time.Duration)
}

type InitResult struct {
	ClientIP string                 `json:"client_ip"`
	APIUsage *domain.ApiUsageStatus `json:"api_usage,omitempty"`
}

type Client struct {
	http     *resty.Client
	timeout  time.Duration
	observer Observer
}

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("reputation: base url is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport, err := newTransport(opts.Proxy, timeout)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetDebug(false).
		SetLogger(quietLogger{})

	if opts.APIKey != "" {
		httpClient.SetHeader("Key", opts.APIKey)
	}
	if transport != nil {
		httpClient.SetTransport(transport)
	}

	return &Client{
		http:     httpClient,
		timeout:  timeout,
		observer: opts.Observer,
	}, nil
}

// Timeout is the bound applied to every call.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Initialize announces the client and fetches the quota status and the
// caller's address as seen by the backend.
func (c *Client) Initialize(ctx context.Context) (*InitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	resp, err := c.http.R().SetContext(ctx).Post("/init")
	c.observe(endpointInit, resp, err, started)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, &TimeoutError{Op: endpointInit, After: c.timeout, Message: connectFallbackMessage, Err: err}
		}
		return nil, &ConnectionError{Message: connectFallbackMessage, Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &ConnectionError{
			Status:  resp.StatusCode(),
			Message: serverMessage(resp.Body(), connectFallbackMessage),
		}
	}

	var result InitResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &ConnectionError{
			Status:  resp.StatusCode(),
			Message: connectFallbackMessage,
			Err:     fmt.Errorf("decode init response: %w", err),
		}
	}
	result.APIUsage.Normalize()

	return &result, nil
}

// CheckBatch submits one batch of addresses for lookup.
func (c *Client) CheckBatch(ctx context.Context, request domain.SubmissionRequest) (*domain.ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	resp, err := c.http.R().SetContext(ctx).SetBody(request).Post("/check")
	c.observe(endpointCheck, resp, err, started)
	if err != nil {
		return nil, c.transportError(endpointCheck, checkFallbackMessage, err)
	}

	if !resp.IsSuccess() {
		body := resp.Body()
		if resp.StatusCode() == http.StatusBadRequest {
			if invalid := gjson.GetBytes(body, "invalid_ips"); invalid.IsArray() {
				return nil, &ValidationError{
					InvalidIPs: stringArray(invalid),
					Message:    serverMessage(body, invalidIPsMessage),
				}
			}
		}
		return nil, &APIError{
			Op:      endpointCheck,
			Status:  resp.StatusCode(),
			Message: serverMessage(body, checkFallbackMessage),
		}
	}

	var results domain.ResultSet
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return nil, &APIError{
			Op:      endpointCheck,
			Status:  resp.StatusCode(),
			Message: checkFallbackMessage,
			Err:     fmt.Errorf("decode check response: %w", err),
		}
	}
	results.Normalize()

	log.Debug("Checked address batch", "submitted", len(request.IPs), "returned", len(results.Data))
	return &results, nil
}

// FetchRawText asks the backend for a plain text listing of the addresses.
func (c *Client) FetchRawText(ctx context.Context, ips []string, obfuscate bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload := struct {
		IPs       []string `json:"ips"`
		Obfuscate bool     `json:"obfuscate"`
	}{IPs: ips, Obfuscate: obfuscate}
	if payload.IPs == nil {
		payload.IPs = []string{}
	}

	started := time.Now()
	resp, err := c.http.R().SetContext(ctx).SetBody(payload).Post("/raw-text")
	c.observe(endpointRawText, resp, err, started)
	if err != nil {
		return "", c.transportError(endpointRawText, rawTextFallbackMessage, err)
	}

	if !resp.IsSuccess() {
		return "", &APIError{
			Op:      endpointRawText,
			Status:  resp.StatusCode(),
			Message: serverMessage(resp.Body(), rawTextFallbackMessage),
		}
	}

	content := gjson.GetBytes(resp.Body(), "content")
	if !content.Exists() {
		return "", &APIError{
			Op:      endpointRawText,
			Status:  resp.StatusCode(),
			Message: rawTextFallbackMessage,
			Err:     fmt.Errorf("raw-text response has no content"),
		}
	}

	return content.String(), nil
}

func (c *Client) transportError(op, fallback string, err error) error {
	if isTimeoutErr(err) {
		return &TimeoutError{Op: op, After: c.timeout, Message: fallback, Err: err}
	}
	return &APIError{Op: op, Message: fallback, Err: err}
}

func (c *Client) observe(endpoint string, resp *resty.Response, err error, started time.Time) {
	elapsed := time.Since(started)

	outcome := "error"
	switch {
	case err != nil && isTimeoutErr(err):
		outcome = "timeout"
	case err == nil && resp != nil:
		outcome = strconv.Itoa(resp.StatusCode())
	}

	if err != nil {
		log.Warn("Backend request failed", "endpoint", endpoint, "outcome", outcome, "elapsed", elapsed, "error", err)
	} else {
		log.Debug("Backend request finished", "endpoint", endpoint, "outcome", outcome, "elapsed", elapsed)
	}

	if c.observer != nil {
		c.observer.ObserveBackendCall(endpoint, outcome, elapsed)
	}
}

// serverMessage returns the body's "error" field verbatim, or fallback.
func serverMessage(body []byte, fallback string) string {
	if !gjson.ValidBytes(body) {
		return fallback
	}
	if message := gjson.GetBytes(body, "error"); message.Type == gjson.String && message.Str != "" {
		return message.Str
	}
	return fallback
}

func stringArray(result gjson.Result) []string {
	items := result.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.String())
	}
	return out
}

// quietLogger keeps resty from writing request details, headers included,
// to its default stderr logger.
type quietLogger struct{}

func (quietLogger) Errorf(format string, v ...interface{}) {
	log.Debug("resty", "message", fmt.Sprintf(format, v...))
}
func (quietLogger) Warnf(format string, v ...interface{}) {
	log.Debug("resty", "message", fmt.Sprintf(format, v...))
}
func (quietLogger) Debugf(string, ...interface{}) {}
