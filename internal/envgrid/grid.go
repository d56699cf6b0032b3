// Package envgrid reads gridded meteorological data and exposes point
// sampling with bilinear interpolation in space and linear interpolation in
// time.
package envgrid

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// GridLoadError reports an unreadable or corrupt grid file.
type GridLoadError struct {
	Path string
	Err  error
}

func (e *GridLoadError) Error() string {
	return fmt.Sprintf("failed to load environment grid %s: %v", e.Path, e.Err)
}

func (e *GridLoadError) Unwrap() error { return e.Err }

// Grid is a read-only set of named scalar fields over a (time, lat, lon)
// index. Axes are ascending; field data is flattened row-major as
// [time][lat][lon].
type Grid struct {
	Source string
	Times  []float64 // unix seconds, ascending
	Lats   []float64 // degrees, ascending
	Lons   []float64 // degrees, ascending
	Fields map[string][]float64
}

// FieldNames returns the available field names sorted for stable output.
func (g *Grid) FieldNames() []string {
	names := make([]string, 0, len(g.Fields))
	for name := range g.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasField reports whether the named field was loaded.
func (g *Grid) HasField(name string) bool {
	_, ok := g.Fields[name]
	return ok
}

// TimeBounds returns the grid's temporal extent.
func (g *Grid) TimeBounds() (time.Time, time.Time) {
	if len(g.Times) == 0 {
		return time.Time{}, time.Time{}
	}
	return unixToTime(g.Times[0]), unixToTime(g.Times[len(g.Times)-1])
}

// at reads the stored value for exact axis indices.
func (g *Grid) at(data []float64, ti, yi, xi int) float64 {
	return data[(ti*len(g.Lats)+yi)*len(g.Lons)+xi]
}

// Sample interpolates the named field at (t, lat, lon): bilinear in space,
// linear in time between the two nearest time steps. It returns false when
// the field is unknown, the query lies outside the grid extent, or a
// neighbouring grid value is missing. It never fails.
func (g *Grid) Sample(field string, t time.Time, lat, lon float64) (float64, bool) {
	data, ok := g.Fields[field]
	if !ok {
		return 0, false
	}

	ti0, ti1, tw, ok := bracket(g.Times, float64(t.UnixNano())/float64(time.Second))
	if !ok {
		return 0, false
	}
	yi0, yi1, yw, ok := bracket(g.Lats, lat)
	if !ok {
		return 0, false
	}
	xi0, xi1, xw, ok := bracket(g.Lons, lon)
	if !ok {
		return 0, false
	}

	v0 := g.bilinear(data, ti0, yi0, yi1, yw, xi0, xi1, xw)
	v1 := g.bilinear(data, ti1, yi0, yi1, yw, xi0, xi1, xw)
	if math.IsNaN(v0) || math.IsNaN(v1) {
		return 0, false
	}
	return v0*(1-tw) + v1*tw, true
}

// bilinear interpolates one time slab at fractional (lat, lon) position.
func (g *Grid) bilinear(data []float64, ti, yi0, yi1 int, yw float64, xi0, xi1 int, xw float64) float64 {
	v00 := g.at(data, ti, yi0, xi0)
	v01 := g.at(data, ti, yi0, xi1)
	v10 := g.at(data, ti, yi1, xi0)
	v11 := g.at(data, ti, yi1, xi1)
	return v00*(1-yw)*(1-xw) + v01*(1-yw)*xw + v10*yw*(1-xw) + v11*yw*xw
}

// bracket locates x within an ascending axis, returning the two neighbouring
// indices and the interpolation weight toward the upper one. Queries outside
// the axis extent return ok=false; queries exactly on a vertex return equal
// indices and weight 0, so vertex samples reproduce stored values exactly.
func bracket(axis []float64, x float64) (i0, i1 int, w float64, ok bool) {
	if len(axis) == 0 || x < axis[0] || x > axis[len(axis)-1] {
		return 0, 0, 0, false
	}
	i := sort.SearchFloat64s(axis, x)
	if i < len(axis) && axis[i] == x {
		return i, i, 0, true
	}
	i0, i1 = i-1, i
	w = (x - axis[i0]) / (axis[i1] - axis[i0])
	return i0, i1, w, true
}

func unixToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()
}

// Load reads a grid file, choosing the reader by extension: .nc for NetCDF,
// .snap.gz for a serialized snapshot. The read is bounded by the context;
// hitting the deadline surfaces as a GridLoadError, not a crash.
func Load(ctx context.Context, path string, levels []int) (*Grid, error) {
	type result struct {
		grid *Grid
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		var g *Grid
		var err error
		switch {
		case strings.HasSuffix(path, ".nc"):
			g, err = readNetCDF(path, levels)
		case strings.HasSuffix(path, ".snap.gz"):
			g, err = ReadSnapshot(path)
		default:
			err = fmt.Errorf("unsupported grid file type %q (want .nc or .snap.gz)", filepath.Ext(path))
		}
		ch <- result{grid: g, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &GridLoadError{Path: path, Err: ctx.Err()}
	case res := <-ch:
		if res.err != nil {
			if _, ok := res.err.(*GridLoadError); ok {
				return nil, res.err
			}
			return nil, &GridLoadError{Path: path, Err: res.err}
		}
		return res.grid, nil
	}
}
