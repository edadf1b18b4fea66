package geolite

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
)

const (
	countryEdition  = "GeoLite2-Country"
	countryFileName = "GeoLite2-Country.mmdb"
	userAgent       = "bulk-ip-app-geolite/1.0"
	downloadTimeout = 2 * time.Minute

	// MaxAge is how old a country database may get before it is replaced.
	MaxAge = 7 * 24 * time.Hour
)

var maxMindDownloadURL = "https://download.maxmind.com/app/geoip_download"

// ErrNoLicenseKey indicates that no MaxMind license key has been configured.
var ErrNoLicenseKey = errors.New("geolite: license key is not configured")

// EnsureCountryDB downloads the country database to path when it is
// missing or older than MaxAge. It reports whether a download happened.
func EnsureCountryDB(ctx context.Context, licenseKey, path string) (bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return false, nil
	}

	if info, err := os.Stat(path); err == nil && time.Since(info.ModTime()) < MaxAge {
		return false, nil
	}

	licenseKey = strings.TrimSpace(licenseKey)
	if licenseKey == "" {
		return false, ErrNoLicenseKey
	}

	if err := downloadCountryDB(ctx, licenseKey, path); err != nil {
		return false, err
	}
	log.Info("GeoLite country database downloaded", "path", path)
	return true, nil
}

func downloadCountryDB(ctx context.Context, licenseKey, destPath string) error {
	client := resty.New().
		SetTimeout(downloadTimeout).
		SetHeader("User-Agent", userAgent)

	resp, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetQueryParams(map[string]string{
			"edition_id":  countryEdition,
			"license_key": licenseKey,
			"suffix":      "tar.gz",
		}).
		Get(maxMindDownloadURL)
	if err != nil {
		return fmt.Errorf("geolite: download %s: %w", countryEdition, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(body, 2048))
		return fmt.Errorf("geolite: download %s: unexpected status %d: %s", countryEdition, resp.StatusCode(), strings.TrimSpace(string(snippet)))
	}

	gzipReader, err := gzip.NewReader(body)
	if err != nil {
		return fmt.Errorf("geolite: open gzip: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("geolite: read tar: %w", err)
		}
		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != countryFileName {
			continue
		}
		if err := writeToFile(destPath, tarReader); err != nil {
			return fmt.Errorf("geolite: write file: %w", err)
		}
		return nil
	}

	return fmt.Errorf("geolite: %s not found in archive", countryFileName)
}

func writeToFile(destPath string, data io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), "geolite-*.mmdb")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()

	if _, err := io.Copy(tmpFile, data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return os.Rename(tmpFile.Name(), destPath)
}
