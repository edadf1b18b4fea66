// Package ipparse turns the free-text address list typed into the form into
// unique, syntactically valid candidates.
package ipparse

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/langerlad/bulk-ip-app/internal/domain"
)

type Result struct {
	Valid   []domain.IpCandidate
	Invalid []string

	lines []string
}

// Parse splits text on line boundaries, trims each line and drops empty
// ones. Valid addresses are deduplicated on their canonical form, keeping the
// first occurrence; invalid lines are reported once per occurrence.
func Parse(text string) Result {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	result := Result{
		Valid:   make([]domain.IpCandidate, 0),
		Invalid: make([]string, 0),
	}
	seen := make(map[string]struct{})

	for _, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		key, ok := canonical(trimmed)
		if !ok {
			result.Invalid = append(result.Invalid, trimmed)
			result.lines = append(result.lines, trimmed)
			continue
		}

		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		result.Valid = append(result.Valid, domain.IpCandidate{Raw: raw, Text: trimmed, Valid: true})
		result.lines = append(result.lines, trimmed)
	}

	return result
}

// Empty reports that the input held nothing but whitespace.
func (r Result) Empty() bool {
	return len(r.Valid) == 0 && len(r.Invalid) == 0
}

func (r Result) Addresses() []string {
	out := make([]string, 0, len(r.Valid))
	for _, c := range r.Valid {
		out = append(out, c.Text)
	}
	return out
}

// Lines returns the normalized submission in input order: duplicates of
// valid addresses removed, invalid lines kept.
func (r Result) Lines() []string {
	return append([]string(nil), r.lines...)
}

func IsValid(s string) bool {
	_, ok := canonical(strings.TrimSpace(s))
	return ok
}

func canonical(s string) (string, bool) {
	if strings.Contains(s, ":") {
		return canonicalIPv6(s)
	}
	return canonicalIPv4(s)
}

// canonicalIPv4 accepts leading zeros ("010.1.1.1"), which netip rejects.
func canonicalIPv4(s string) (string, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return "", false
	}

	var octets [4]byte
	for i, part := range parts {
		if len(part) == 0 || len(part) > 3 {
			return "", false
		}
		for _, ch := range part {
			if ch < '0' || ch > '9' {
				return "", false
			}
		}
		value, err := strconv.Atoi(part)
		if err != nil || value > 255 {
			return "", false
		}
		octets[i] = byte(value)
	}

	return netip.AddrFrom4(octets).String(), true
}

func canonicalIPv6(s string) (string, bool) {
	if strings.Contains(s, "%") {
		return "", false
	}
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is6() {
		return "", false
	}
	return addr.String(), true
}
