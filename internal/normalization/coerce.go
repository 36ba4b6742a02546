package normalization

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Raw is an untrusted decoded model response.
type Raw = map[string]any

// DefaultRiskScore replaces missing or non-numeric scores.
const DefaultRiskScore = 0.5

// String coerces scalars to a trimmed string. Missing values, objects and
// arrays become "".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool, int, int64, int32:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

// StringList coerces a list (or a lone scalar) to non-empty trimmed strings.
// The result is never nil.
func StringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case nil:
		return out
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, x := range t {
			if s := String(x); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := String(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Float parses numeric values, including numeric strings.
func Float(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Score clamps a risk score to [0,1]; unusable values give DefaultRiskScore.
func Score(v any) float64 {
	f, ok := Float(v)
	if !ok {
		return DefaultRiskScore
	}
	return Clamp(f, 0, 1)
}

func Clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01/02/2006",
}

// OptionalDate parses common date spellings into a UTC time. Anything
// unparseable is treated as absent.
func OptionalDate(v any) *time.Time {
	s := String(v)
	if s == "" {
		return nil
	}
	switch strings.ToLower(s) {
	case "null", "none", "n/a", "not specified", "unknown":
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// FormatDate renders a date in the form OptionalDate reads back unchanged.
func FormatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// Object returns v as a map, if it is one.
func Object(v any) (Raw, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// first returns the first present key of raw.
func first(raw Raw, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
