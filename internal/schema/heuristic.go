package schema

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultSynonyms seeds the resolver with common English and Chinese header
// spellings. A configured synonym table extends (and may override) these.
var defaultSynonyms = map[string]string{
	"timestamp": FieldTimestamp,
	"time":      FieldTimestamp,
	"datetime":  FieldTimestamp,
	"date":      FieldTimestamp,
	"utc":       FieldTimestamp,
	"时间":        FieldTimestamp,
	"日期":        FieldTimestamp,

	"latitude": FieldLatitude,
	"lat":      FieldLatitude,
	"纬度":       FieldLatitude,

	"longitude": FieldLongitude,
	"lon":       FieldLongitude,
	"lng":       FieldLongitude,
	"经度":        FieldLongitude,

	"speed":       FieldSpeed,
	"sog":         FieldSpeed,
	"shipspeed":   FieldSpeed,
	"groundspeed": FieldSpeed,
	"航速":          FieldSpeed,
	"船速":          FieldSpeed,

	"heading": FieldHeading,
	"course":  FieldHeading,
	"cog":     FieldHeading,
	"航向":      FieldHeading,

	"fuel":            FieldFuel,
	"fuelconsumption": FieldFuel,
	"fuelrate":        FieldFuel,
	"油耗":              FieldFuel,
	"燃油消耗":            FieldFuel,

	"truewindspeed": FieldTrueWindSpeed,
	"windspeed":     FieldTrueWindSpeed,
	"tws":           FieldTrueWindSpeed,
	"真风速":           FieldTrueWindSpeed,
	"风速":            FieldTrueWindSpeed,

	"truewinddirection": FieldTrueWindDirection,
	"winddirection":     FieldTrueWindDirection,
	"twd":               FieldTrueWindDirection,
	"真风向":               FieldTrueWindDirection,
	"风向":                FieldTrueWindDirection,
}

// HeuristicResolver resolves headers by normalized lookup in a synonym
// table. It is deterministic, offline and the default implementation.
type HeuristicResolver struct {
	synonyms map[string]string
}

// NewHeuristicResolver creates a resolver seeded with the built-in synonym
// table. extra entries (normalized header -> canonical field) take
// precedence over the defaults.
func NewHeuristicResolver(extra map[string]string) (*HeuristicResolver, error) {
	syn := make(map[string]string, len(defaultSynonyms)+len(extra))
	for k, v := range defaultSynonyms {
		syn[k] = v
	}
	for k, v := range extra {
		if !IsCanonical(v) {
			return nil, fmt.Errorf("synonym %q maps to unknown field %q", k, v)
		}
		syn[Normalize(k)] = v
	}
	return &HeuristicResolver{synonyms: syn}, nil
}

// LoadSynonymTable reads a YAML synonym table mapping raw header spellings
// to canonical field names.
func LoadSynonymTable(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonym table: %w", err)
	}
	var table map[string]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse synonym table: %w", err)
	}
	return table, nil
}

// Resolve maps each header through the synonym table. Each canonical field
// is claimed at most once; when two headers normalise to the same field the
// earlier column wins and the later one becomes an extra.
func (r *HeuristicResolver) Resolve(_ context.Context, headers []string, _ [][]string) (*Mapping, error) {
	m := &Mapping{Columns: make(map[string]string, len(headers))}
	claimed := make(map[string]bool, len(CanonicalFields))

	for _, h := range headers {
		canon, ok := r.synonyms[Normalize(h)]
		if ok && !claimed[canon] {
			m.Columns[h] = canon
			claimed[canon] = true
			continue
		}
		// extras keep their source column order so downstream field
		// ordering stays deterministic
		m.Extras = append(m.Extras, h)
	}
	return m, nil
}
