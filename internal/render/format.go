package render

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/langerlad/bulk-ip-app/internal/domain"
)

const (
	absoluteLayout = "2006-01-02 15:04:05 MST"
	resetLayout    = "2006-01-02 15:04:05"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02",
}

// FormatOptionalList renders a value that may be absent, a list or a scalar.
func FormatOptionalList(value domain.FlexValue) string {
	switch {
	case value.IsNull():
		return "Unknown"
	case value.IsList():
		values := value.Values()
		if len(values) == 0 {
			return "None"
		}
		return strings.Join(values, ", ")
	default:
		return value.Scalar()
	}
}

// FormatTimestamp renders an absolute time in loc followed by a relative
// suffix. Unparsable input is returned unchanged.
func FormatTimestamp(value *string, now time.Time, loc *time.Location) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return "Never"
	}

	parsed, ok := parseTimestamp(*value)
	if !ok {
		return *value
	}
	if loc == nil {
		loc = time.UTC
	}

	return parsed.In(loc).Format(absoluteLayout) + " (" + humanize.RelTime(parsed, now, "ago", "from now") + ")"
}

// FormatResetTime renders the quota reset instant in UTC.
func FormatResetTime(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Unknown"
	}

	parsed, ok := parseTimestamp(value)
	if !ok {
		return value
	}
	return parsed.UTC().Format(resetLayout)
}

// parseTimestamp accepts ISO-8601 with or without zone. Zone-less values are
// taken as UTC.
func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func countryLabel(name string, code *string) string {
	if code == nil || *code == "" {
		return name
	}
	return name + " (" + *code + ")"
}
