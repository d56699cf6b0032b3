// Package ingest loads tabular trajectory files into the canonical model:
// parse, coerce, clip, order, interpolate, and optionally resample.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/interp"

	"github.com/seaway-data/shiptrace/internal/config"
	"github.com/seaway-data/shiptrace/internal/monitoring"
	"github.com/seaway-data/shiptrace/internal/schema"
	"github.com/seaway-data/shiptrace/internal/traj"
	"github.com/seaway-data/shiptrace/internal/units"
)

// ErrEmptyTrajectory is returned when no valid rows survive cleaning.
var ErrEmptyTrajectory = errors.New("no valid trajectory rows after cleaning")

// timestampLayouts are tried in order when coercing the timestamp column.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"01-02-06 15:04",
	"2006-01-02",
}

// Loader turns a raw table into a loaded trajectory. All knobs come from
// configuration so that a loader's behaviour is fully captured by the cache
// fingerprint.
type Loader struct {
	Resolver schema.Resolver
	Clips    map[string]config.ClipRule
	Units    map[string]string // canonical field -> source unit
	Resample time.Duration     // zero = natural timestamp passthrough
	Encoding string
	Sheet    string
	RowLimit int
}

// Load reads, resolves, cleans and orders the trajectory at path.
// sourceHash identifies the file content and is stored on the result.
func (l *Loader) Load(ctx context.Context, path, sourceHash string) (*traj.Trajectory, error) {
	table, err := ReadTable(path, l.Encoding, l.Sheet, l.RowLimit)
	if err != nil {
		return nil, err
	}

	mapping, err := l.Resolver.Resolve(ctx, table.Headers, table.SampleRows(3))
	if err != nil {
		return nil, fmt.Errorf("schema resolution failed: %w", err)
	}
	if missing := mapping.MissingRequired(); len(missing) > 0 {
		return nil, &schema.SchemaError{Missing: missing}
	}

	return l.build(table, mapping, path, sourceHash)
}

// column pairs a source column index with the field it feeds.
type column struct {
	index int
	field traj.Field
}

// build assembles the trajectory from a resolved table.
func (l *Loader) build(table *Table, mapping *schema.Mapping, path, sourceHash string) (*traj.Trajectory, error) {
	headerIndex := make(map[string]int, len(table.Headers))
	for i, h := range table.Headers {
		headerIndex[h] = i
	}

	tsCol := headerIndex[mapping.Canonical(schema.FieldTimestamp)]
	latCol := headerIndex[mapping.Canonical(schema.FieldLatitude)]
	lonCol := headerIndex[mapping.Canonical(schema.FieldLongitude)]

	// canonical optional fields first in schema order, then extras in source
	// column order; the order is part of the output contract
	var cols []column
	for _, canon := range schema.CanonicalFields {
		switch canon {
		case schema.FieldTimestamp, schema.FieldLatitude, schema.FieldLongitude:
			continue
		}
		raw := mapping.Canonical(canon)
		if raw == "" {
			continue
		}
		cols = append(cols, column{index: headerIndex[raw], field: traj.Field{Name: canon, Unit: l.fieldUnit(canon)}})
	}
	for _, raw := range mapping.Extras {
		if raw == "" {
			continue
		}
		cols = append(cols, column{index: headerIndex[raw], field: traj.Field{Name: extraFieldName(raw)}})
	}

	type record struct {
		t        time.Time
		lat, lon float64
		vals     []float64
	}

	var records []record
	dropped := 0
	for r := range table.Rows {
		t, err := parseTimestamp(table.Cell(r, tsCol))
		if err != nil {
			dropped++
			continue
		}
		rec := record{
			t:    t,
			lat:  parseFloat(table.Cell(r, latCol)),
			lon:  parseFloat(table.Cell(r, lonCol)),
			vals: make([]float64, len(cols)),
		}
		for i, c := range cols {
			v := parseFloat(table.Cell(r, c.index))
			if !math.IsNaN(v) && c.field.Unit != "" {
				v = units.ToMPS(v, c.field.Unit)
			}
			rec.vals[i] = v
		}
		records = append(records, rec)
	}
	if dropped > 0 {
		monitoring.Logf("ingest: %s: dropped %d rows without a parseable timestamp", path, dropped)
	}
	if len(records) == 0 {
		return nil, ErrEmptyTrajectory
	}

	// order by timestamp; duplicates keep the first occurrence
	sort.SliceStable(records, func(i, j int) bool { return records[i].t.Before(records[j].t) })
	deduped := records[:0]
	duplicates := 0
	for _, rec := range records {
		if len(deduped) > 0 && !rec.t.After(deduped[len(deduped)-1].t) {
			duplicates++
			continue
		}
		deduped = append(deduped, rec)
	}
	if duplicates > 0 {
		monitoring.Logf("ingest: %s: dropped %d duplicate-timestamp rows", path, duplicates)
	}
	records = deduped

	// column-major series for interpolation: times plus lat, lon and every
	// field as independent series
	times := make([]float64, len(records))
	for i, rec := range records {
		times[i] = float64(rec.t.UnixNano()) / float64(time.Second)
	}
	series := make([][]float64, len(cols)+2)
	for s := range series {
		series[s] = make([]float64, len(records))
	}
	for i, rec := range records {
		series[0][i] = rec.lat
		series[1][i] = rec.lon
		for ci := range cols {
			series[ci+2][i] = rec.vals[ci]
		}
	}

	// clip before interpolation so out-of-range values never seed a repair
	if rule, ok := l.Clips[schema.FieldLatitude]; ok {
		clipSeries(rule, series[0])
	}
	if rule, ok := l.Clips[schema.FieldLongitude]; ok {
		clipSeries(rule, series[1])
	}
	for ci, c := range cols {
		rule, ok := l.Clips[c.field.Name]
		if !ok {
			continue
		}
		if replaced := clipSeries(rule, series[ci+2]); replaced > 0 {
			monitoring.Debugf("ingest: %s: clipped %d values of %s", path, replaced, c.field.Name)
		}
	}

	outTimes := times
	if l.Resample > 0 {
		outTimes = resampleTimes(records[0].t, records[len(records)-1].t, l.Resample)
		for s := range series {
			series[s] = interpolateOnto(times, series[s], outTimes)
		}
	} else {
		for s := range series {
			fillInteriorGaps(times, series[s])
		}
	}

	fields := make([]traj.Field, len(cols))
	for i, c := range cols {
		fields[i] = c.field
	}
	out := traj.New(path, sourceHash, fields)
	out.PartiallyResolved = mapping.Partial

	skipped := 0
	for i, ts := range outTimes {
		lat, lon := series[0][i], series[1][i]
		if math.IsNaN(lat) || math.IsNaN(lon) {
			skipped++
			continue
		}
		sec, frac := math.Modf(ts)
		p := traj.Point{
			Time:   time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC(),
			Lat:    lat,
			Lon:    lon,
			Values: make([]float64, len(cols)),
		}
		for ci := range cols {
			p.Values[ci] = series[ci+2][i]
		}
		out.Points = append(out.Points, p)
	}
	if skipped > 0 {
		monitoring.Logf("ingest: %s: dropped %d points missing coordinates", path, skipped)
	}
	if out.Len() == 0 {
		return nil, ErrEmptyTrajectory
	}
	return out, nil
}

func (l *Loader) fieldUnit(canonical string) string {
	if u, ok := l.Units[canonical]; ok {
		return u
	}
	return ""
}

// extraFieldName turns an unresolved raw header into a stable opaque field
// name.
func extraFieldName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return strings.Trim(name, "_")
}

// parseTimestamp coerces a cell to a UTC instant, trying the known layouts
// and then a unix-seconds fallback.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseFloat(s, 64); err == nil && sec > 1e8 {
		whole, frac := math.Modf(sec)
		return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// parseFloat coerces a cell to a float64 or NaN.
func parseFloat(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// fillInteriorGaps linearly interpolates NaN runs that have a valid
// neighbour on both sides. Edge gaps are left missing, never extrapolated.
func fillInteriorGaps(times, values []float64) {
	xs, ys := validPairs(times, values)
	if len(xs) < 2 {
		return
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return
	}
	lo, hi := xs[0], xs[len(xs)-1]
	for i, v := range values {
		if !math.IsNaN(v) {
			continue
		}
		if times[i] < lo || times[i] > hi {
			continue
		}
		values[i] = pl.Predict(times[i])
	}
}

// interpolateOnto evaluates a series at new sample times. Targets outside
// the valid extent of the source series become NaN.
func interpolateOnto(times, values, targets []float64) []float64 {
	out := make([]float64, len(targets))
	xs, ys := validPairs(times, values)
	if len(xs) < 2 {
		// a single valid sample can only answer an exact-time query
		for i, tt := range targets {
			out[i] = math.NaN()
			if len(xs) == 1 && tt == xs[0] {
				out[i] = ys[0]
			}
		}
		return out
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	lo, hi := xs[0], xs[len(xs)-1]
	for i, tt := range targets {
		if tt < lo || tt > hi {
			out[i] = math.NaN()
			continue
		}
		out[i] = pl.Predict(tt)
	}
	return out
}

// validPairs filters a (time, value) series down to its non-missing samples.
func validPairs(times, values []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(values))
	ys := make([]float64, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		xs = append(xs, times[i])
		ys = append(ys, v)
	}
	return xs, ys
}

// resampleTimes builds the fixed grid from start to end inclusive.
func resampleTimes(start, end time.Time, step time.Duration) []float64 {
	var out []float64
	for t := start; !t.After(end); t = t.Add(step) {
		out = append(out, float64(t.UnixNano())/float64(time.Second))
	}
	return out
}
