// Package schema maps raw tabular headers onto the canonical trajectory
// field set. Resolution is heuristic by default; a language-model backed
// resolver can be layered on top for headers the synonym table cannot place.
package schema

import (
	"context"
	"fmt"
	"strings"
)

// Canonical field names understood by the pipeline. Timestamp, latitude and
// longitude are required; everything else is optional.
const (
	FieldTimestamp         = "timestamp"
	FieldLatitude          = "latitude"
	FieldLongitude         = "longitude"
	FieldSpeed             = "speed"
	FieldHeading           = "heading"
	FieldFuel              = "fuel"
	FieldTrueWindSpeed     = "true_wind_speed"
	FieldTrueWindDirection = "true_wind_direction"
)

// CanonicalFields lists every field name a resolver may produce, in a stable
// order.
var CanonicalFields = []string{
	FieldTimestamp,
	FieldLatitude,
	FieldLongitude,
	FieldSpeed,
	FieldHeading,
	FieldFuel,
	FieldTrueWindSpeed,
	FieldTrueWindDirection,
}

// RequiredFields must all be present after resolution for loading to proceed.
var RequiredFields = []string{FieldTimestamp, FieldLatitude, FieldLongitude}

// IsCanonical reports whether name is a member of the canonical set.
func IsCanonical(name string) bool {
	for _, f := range CanonicalFields {
		if f == name {
			return true
		}
	}
	return false
}

// Mapping is the result of schema resolution. Columns maps each raw header
// to its canonical field name. Headers with no confident match are listed in
// Extras and retained as opaque fields, never discarded. Partial is set when
// a configured language-model backend was unavailable or failed and only the
// heuristic pass ran.
type Mapping struct {
	Columns map[string]string
	Extras  []string
	Partial bool
}

// Canonical returns the raw header resolved to the given canonical field,
// or "" if none was.
func (m *Mapping) Canonical(field string) string {
	for raw, canon := range m.Columns {
		if canon == field {
			return raw
		}
	}
	return ""
}

// MissingRequired returns the required canonical fields absent from the
// mapping.
func (m *Mapping) MissingRequired() []string {
	var missing []string
	for _, f := range RequiredFields {
		if m.Canonical(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// SchemaError reports required canonical fields that could not be resolved
// from the input headers.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("required fields unresolved: %s", strings.Join(e.Missing, ", "))
}

// Resolver is the capability interface for header resolution. samples may
// carry a few raw data rows to help disambiguate; implementations must not
// require them.
type Resolver interface {
	Resolve(ctx context.Context, headers []string, samples [][]string) (*Mapping, error)
}

// Normalize canonicalises a raw header for synonym-table lookup: lower-cased,
// trimmed, with internal whitespace, dashes, dots and parenthesised unit
// suffixes removed.
func Normalize(header string) string {
	s := strings.TrimSpace(strings.ToLower(header))

	// strip a trailing unit annotation like "speed (kn)" or "fuel [t/h]"
	if i := strings.IndexAny(s, "(["); i > 0 {
		s = strings.TrimSpace(s[:i])
	}

	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\t', '-', '_', '.', '/':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
