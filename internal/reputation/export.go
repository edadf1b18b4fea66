package reputation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type ExportType string

const (
	ExportCSV  ExportType = "csv"
	ExportHTML ExportType = "html"
)

func ParseExportType(value string) (ExportType, error) {
	switch ExportType(strings.ToLower(strings.TrimSpace(value))) {
	case ExportCSV:
		return ExportCSV, nil
	case ExportHTML:
		return ExportHTML, nil
	default:
		return "", fmt.Errorf("reputation: unknown export type %q", value)
	}
}

// Label is the upper-case name used in user-facing messages.
func (t ExportType) Label() string {
	return strings.ToUpper(string(t))
}

// LocalName is the name the export is saved under.
func (t ExportType) LocalName() string {
	return "ip_report." + string(t)
}

func (t ExportType) ContentType() string {
	if t == ExportHTML {
		return "text/html; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// Export is a streamed export artifact. The caller must close Body.
type Export struct {
	Type ExportType
	Name string
	Body io.ReadCloser
}

// DownloadExport streams a previously generated export from the backend.
func (c *Client) DownloadExport(ctx context.Context, fileType ExportType, filename string) (*Export, error) {
	if fileType != ExportCSV && fileType != ExportHTML {
		return nil, fmt.Errorf("reputation: unknown export type %q", fileType)
	}

	failure := fmt.Sprintf("Could not download %s file. Please try again.", fileType.Label())
	if strings.TrimSpace(filename) == "" {
		return nil, &NotFoundError{FileType: string(fileType), Message: failure}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	started := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/download/" + string(fileType) + "/" + url.PathEscape(filename))
	c.observe(endpointDownload, resp, err, started)
	if err != nil {
		cancel()
		return nil, c.transportError(endpointDownload, failure, err)
	}

	body := resp.RawBody()
	if !resp.IsSuccess() {
		if body != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
			_ = body.Close()
		}
		cancel()

		if resp.StatusCode() == http.StatusNotFound {
			return nil, &NotFoundError{FileType: string(fileType), Filename: filename, Message: failure}
		}
		return nil, &APIError{Op: endpointDownload, Status: resp.StatusCode(), Message: failure}
	}

	return &Export{
		Type: fileType,
		Name: fileType.LocalName(),
		Body: &cancelOnClose{ReadCloser: body, cancel: cancel},
	}, nil
}

// SaveExport writes the export into dir under its local name and closes the
// stream. It returns the written path.
func SaveExport(dir string, export *Export) (string, error) {
	if export == nil || export.Body == nil {
		return "", fmt.Errorf("reputation: nothing to save")
	}
	defer export.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("reputation: create export dir: %w", err)
	}

	target := filepath.Join(dir, export.Name)
	tmp, err := os.CreateTemp(dir, export.Name+".*.part")
	if err != nil {
		return "", fmt.Errorf("reputation: create export file: %w", err)
	}

	if _, err := io.Copy(tmp, export.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("reputation: write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("reputation: close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("reputation: move export into place: %w", err)
	}

	return target, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
