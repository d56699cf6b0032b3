package envgrid

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildGrid returns a 2x2x2 grid with u10 = 10*ti + lat-index*2 + lon-index,
// so every stored value is distinct and easy to predict.
func buildGrid() *Grid {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	times := []float64{float64(t0.Unix()), float64(t0.Add(6 * time.Hour).Unix())}
	lats := []float64{30, 31}
	lons := []float64{120, 121}

	u := make([]float64, 8)
	for ti := 0; ti < 2; ti++ {
		for yi := 0; yi < 2; yi++ {
			for xi := 0; xi < 2; xi++ {
				u[(ti*2+yi)*2+xi] = float64(10*ti + yi*2 + xi)
			}
		}
	}
	return &Grid{
		Source: "test",
		Times:  times,
		Lats:   lats,
		Lons:   lons,
		Fields: map[string][]float64{"u10": u},
	}
}

func TestSampleVertexExact(t *testing.T) {
	g := buildGrid()
	t0 := unixToTime(g.Times[0])

	// every grid vertex reproduces its stored value with no interpolation
	for yi, lat := range g.Lats {
		for xi, lon := range g.Lons {
			v, ok := g.Sample("u10", t0, lat, lon)
			require.True(t, ok)
			assert.Equal(t, float64(yi*2+xi), v, "vertex (%v, %v)", lat, lon)
		}
	}
}

func TestSampleBilinearMidpoint(t *testing.T) {
	g := buildGrid()
	t0 := unixToTime(g.Times[0])

	// spatial midpoint of the first slab: mean of 0, 1, 2, 3
	v, ok := g.Sample("u10", t0, 30.5, 120.5)
	require.True(t, ok)
	assert.InDelta(t, 1.5, v, 1e-9)
}

func TestSampleTimeInterpolation(t *testing.T) {
	g := buildGrid()
	mid := unixToTime((g.Times[0] + g.Times[1]) / 2)

	// corner (30, 120) goes 0 -> 10 across the slab
	v, ok := g.Sample("u10", mid, 30, 120)
	require.True(t, ok)
	assert.InDelta(t, 5.0, v, 1e-9)
}

func TestSampleOutOfBounds(t *testing.T) {
	g := buildGrid()
	t0 := unixToTime(g.Times[0])

	cases := []struct {
		name     string
		t        time.Time
		lat, lon float64
	}{
		{"lat below", t0, 29.9, 120.5},
		{"lat above", t0, 31.1, 120.5},
		{"lon below", t0, 30.5, 119.9},
		{"lon above", t0, 30.5, 121.1},
		{"before first time", t0.Add(-time.Minute), 30.5, 120.5},
		{"after last time", t0.Add(7 * time.Hour), 30.5, 120.5},
	}
	for _, tc := range cases {
		_, ok := g.Sample("u10", tc.t, tc.lat, tc.lon)
		assert.False(t, ok, tc.name)
	}
}

func TestSampleUnknownField(t *testing.T) {
	g := buildGrid()
	_, ok := g.Sample("v10", unixToTime(g.Times[0]), 30.5, 120.5)
	assert.False(t, ok)
}

func TestSampleMissingNeighbour(t *testing.T) {
	g := buildGrid()
	g.Fields["u10"][0] = math.NaN()

	// any sample whose stencil touches the NaN corner reports missing
	_, ok := g.Sample("u10", unixToTime(g.Times[0]), 30.25, 120.25)
	assert.False(t, ok)

	// a sample away from the NaN corner still works
	v, ok := g.Sample("u10", unixToTime(g.Times[0]), 31, 121)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestBracket(t *testing.T) {
	axis := []float64{1, 2, 4}

	i0, i1, w, ok := bracket(axis, 2)
	require.True(t, ok)
	assert.Equal(t, i0, i1)
	assert.Equal(t, 0.0, w)

	i0, i1, w, ok = bracket(axis, 3)
	require.True(t, ok)
	assert.Equal(t, 1, i0)
	assert.Equal(t, 2, i1)
	assert.InDelta(t, 0.5, w, 1e-9)

	_, _, _, ok = bracket(axis, 0.5)
	assert.False(t, ok)
	_, _, _, ok = bracket(axis, 4.5)
	assert.False(t, ok)
	_, _, _, ok = bracket(nil, 1)
	assert.False(t, ok)
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := buildGrid()
	g.Fields["u10"][3] = math.NaN()

	blob, err := SerializeGrid(g)
	require.NoError(t, err)
	got, err := DeserializeGrid(blob)
	require.NoError(t, err)

	assert.Equal(t, g.Times, got.Times)
	assert.Equal(t, g.Lats, got.Lats)
	assert.Equal(t, g.Lons, got.Lons)
	require.Contains(t, got.Fields, "u10")
	assert.True(t, math.IsNaN(got.Fields["u10"][3]))
	assert.Equal(t, g.Fields["u10"][1], got.Fields["u10"][1])
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	g := buildGrid()
	path := filepath.Join(t.TempDir(), "wind.snap.gz")
	require.NoError(t, WriteSnapshot(g, path))

	got, err := Load(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, g.Times, got.Times)

	v, ok := got.Sample("u10", unixToTime(g.Times[0]), 30, 121)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestDeserializeCorruptSnapshot(t *testing.T) {
	_, err := DeserializeGrid([]byte("definitely not gzip"))
	assert.Error(t, err)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "wind.grib2"), nil)
	var gridErr *GridLoadError
	assert.ErrorAs(t, err, &gridErr)
}

func TestLoadHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// whichever of cancellation or the failed read wins, the caller sees a
	// recoverable GridLoadError
	_, err := Load(ctx, filepath.Join(t.TempDir(), "wind.nc"), nil)
	var gridErr *GridLoadError
	require.ErrorAs(t, err, &gridErr)
}

func TestTimeBoundsAndFieldNames(t *testing.T) {
	g := buildGrid()
	lo, hi := g.TimeBounds()
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), lo)
	assert.Equal(t, time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC), hi)
	assert.Equal(t, []string{"u10"}, g.FieldNames())
	assert.True(t, g.HasField("u10"))
	assert.False(t, g.HasField("v10"))
}
