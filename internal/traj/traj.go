// Package traj defines the canonical in-memory trajectory model produced by
// the loader, augmented by the joiner, and read by the export layer.
package traj

import (
	"fmt"
	"math"
	"time"
)

// Field describes one named numeric series carried by a trajectory.
type Field struct {
	Name string
	Unit string
}

// Point is a single timestamped trajectory sample. Values is aligned
// index-for-index with the owning Trajectory's Fields; NaN marks a missing
// value.
type Point struct {
	Time   time.Time
	Lat    float64
	Lon    float64
	Values []float64
}

// Value returns the value at field index i, or NaN if the point does not
// carry that index.
func (p *Point) Value(i int) float64 {
	if i < 0 || i >= len(p.Values) {
		return math.NaN()
	}
	return p.Values[i]
}

// Trajectory is an ordered sequence of points plus source metadata. The
// loader guarantees strictly increasing timestamps with no duplicates; the
// joiner only appends fields and never reorders points.
//
// Field order is part of the model: serialisation and export iterate Fields
// in declaration order so that identical inputs always produce identical
// bytes.
type Trajectory struct {
	Source            string // source file path
	SourceHash        string // hex fingerprint of the source file content
	PartiallyResolved bool   // heuristic-only schema fallback was used

	Fields []Field
	Points []Point
}

// New creates an empty trajectory for the given source identity and fields.
func New(source, sourceHash string, fields []Field) *Trajectory {
	return &Trajectory{
		Source:     source,
		SourceHash: sourceHash,
		Fields:     append([]Field(nil), fields...),
	}
}

// Len returns the number of points.
func (t *Trajectory) Len() int { return len(t.Points) }

// FieldIndex returns the index of the named field, or -1.
func (t *Trajectory) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// FieldNames returns the field names in declaration order.
func (t *Trajectory) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// AddField appends a new named series and extends every point with NaN.
// It returns the index of the new field. Adding an existing field returns
// its current index without modification.
func (t *Trajectory) AddField(name, unit string) int {
	if i := t.FieldIndex(name); i >= 0 {
		return i
	}
	t.Fields = append(t.Fields, Field{Name: name, Unit: unit})
	idx := len(t.Fields) - 1
	for i := range t.Points {
		for len(t.Points[i].Values) <= idx {
			t.Points[i].Values = append(t.Points[i].Values, math.NaN())
		}
	}
	return idx
}

// Series returns a copy of the named field's values aligned with Points.
// Missing values are NaN. Unknown fields return nil.
func (t *Trajectory) Series(name string) []float64 {
	idx := t.FieldIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(t.Points))
	for i := range t.Points {
		out[i] = t.Points[i].Value(idx)
	}
	return out
}

// Timestamps returns the point times in order.
func (t *Trajectory) Timestamps() []time.Time {
	out := make([]time.Time, len(t.Points))
	for i := range t.Points {
		out[i] = t.Points[i].Time
	}
	return out
}

// Validate checks the ordering invariant: strictly increasing timestamps and
// value slices no longer than the field list.
func (t *Trajectory) Validate() error {
	for i := range t.Points {
		if len(t.Points[i].Values) > len(t.Fields) {
			return fmt.Errorf("point %d carries %d values for %d fields", i, len(t.Points[i].Values), len(t.Fields))
		}
		if i == 0 {
			continue
		}
		if !t.Points[i].Time.After(t.Points[i-1].Time) {
			return fmt.Errorf("point %d timestamp %v does not increase over %v", i, t.Points[i].Time, t.Points[i-1].Time)
		}
	}
	return nil
}
