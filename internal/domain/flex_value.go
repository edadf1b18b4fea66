package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlexValue holds a backend field that may be absent, null, a scalar or a
// list of scalars (hostnames, domain, usageType...).
type FlexValue struct {
	set    bool
	isList bool
	scalar string
	list   []string
}

func Scalar(value string) FlexValue {
	return FlexValue{set: true, scalar: value}
}

func List(values ...string) FlexValue {
	out := make([]string, len(values))
	copy(out, values)
	return FlexValue{set: true, isList: true, list: out}
}

// IsNull reports whether the field was absent or explicitly null.
func (v FlexValue) IsNull() bool { return !v.set }

func (v FlexValue) IsList() bool { return v.set && v.isList }

func (v FlexValue) Scalar() string { return v.scalar }

// Values returns a copy of the list items, or the scalar as a one-element
// slice. Empty scalars yield nil.
func (v FlexValue) Values() []string {
	switch {
	case !v.set:
		return nil
	case v.isList:
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	case v.scalar == "":
		return nil
	default:
		return []string{v.scalar}
	}
}

func (v *FlexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = FlexValue{}
		return nil
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("domain.FlexValue: %w", err)
		}
		items := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := scalarString(item); ok {
				items = append(items, s)
			}
		}
		*v = FlexValue{set: true, isList: true, list: items}
		return nil
	case '{':
		return fmt.Errorf("domain.FlexValue: unsupported object value %s", data)
	default:
		s, _ := scalarString(data)
		*v = FlexValue{set: true, scalar: s}
		return nil
	}
}

func (v FlexValue) MarshalJSON() ([]byte, error) {
	switch {
	case !v.set:
		return []byte("null"), nil
	case v.isList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.scalar)
	}
}

func (v FlexValue) String() string {
	if v.isList {
		return strings.Join(v.list, ", ")
	}
	return v.scalar
}

func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}
