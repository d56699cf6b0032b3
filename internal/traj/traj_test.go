package traj

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTrajectory() *Trajectory {
	t := New("voyage.csv", "deadbeef", []Field{
		{Name: "speed", Unit: "m/s"},
		{Name: "heading", Unit: "deg"},
	})
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t.Points = []Point{
		{Time: base, Lat: 30.0, Lon: 120.0, Values: []float64{5.0, 90.0}},
		{Time: base.Add(time.Hour), Lat: 30.1, Lon: 120.1, Values: []float64{5.5, math.NaN()}},
		{Time: base.Add(2 * time.Hour), Lat: 30.2, Lon: 120.2, Values: []float64{6.0, 92.0}},
	}
	return t
}

func TestFieldIndex(t *testing.T) {
	tr := newTestTrajectory()
	assert.Equal(t, 0, tr.FieldIndex("speed"))
	assert.Equal(t, 1, tr.FieldIndex("heading"))
	assert.Equal(t, -1, tr.FieldIndex("missing"))
}

func TestAddFieldExtendsPoints(t *testing.T) {
	tr := newTestTrajectory()
	idx := tr.AddField("w10", "m/s")
	require.Equal(t, 2, idx)

	for i := range tr.Points {
		assert.True(t, math.IsNaN(tr.Points[i].Value(idx)), "point %d", i)
	}

	// re-adding is a no-op
	assert.Equal(t, idx, tr.AddField("w10", "m/s"))
	assert.Len(t, tr.Fields, 3)
}

func TestSeries(t *testing.T) {
	tr := newTestTrajectory()

	speed := tr.Series("speed")
	assert.Equal(t, []float64{5.0, 5.5, 6.0}, speed)

	heading := tr.Series("heading")
	require.Len(t, heading, 3)
	assert.True(t, math.IsNaN(heading[1]))

	assert.Nil(t, tr.Series("missing"))

	// Series returns a copy
	speed[0] = -1
	assert.Equal(t, 5.0, tr.Points[0].Value(0))
}

func TestPointValueOutOfRange(t *testing.T) {
	p := Point{Values: []float64{1.0}}
	assert.Equal(t, 1.0, p.Value(0))
	assert.True(t, math.IsNaN(p.Value(1)))
	assert.True(t, math.IsNaN(p.Value(-1)))
}

func TestValidate(t *testing.T) {
	tr := newTestTrajectory()
	require.NoError(t, tr.Validate())

	// duplicate timestamp
	dup := newTestTrajectory()
	dup.Points[1].Time = dup.Points[0].Time
	assert.Error(t, dup.Validate())

	// out-of-order timestamp
	ooo := newTestTrajectory()
	ooo.Points[2].Time = ooo.Points[0].Time.Add(-time.Hour)
	assert.Error(t, ooo.Validate())

	// too many values for the field list
	wide := newTestTrajectory()
	wide.Points[0].Values = append(wide.Points[0].Values, 1, 2, 3)
	assert.Error(t, wide.Validate())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tr := newTestTrajectory()
	tr.PartiallyResolved = true

	blob, err := Encode(tr)
	require.NoError(t, err)

	got, err := Decode(blob)
	require.NoError(t, err)

	assert.Equal(t, tr.Source, got.Source)
	assert.Equal(t, tr.SourceHash, got.SourceHash)
	assert.True(t, got.PartiallyResolved)
	assert.Empty(t, cmp.Diff(tr.Fields, got.Fields))
	require.Equal(t, tr.Len(), got.Len())

	for i := range tr.Points {
		assert.True(t, tr.Points[i].Time.Equal(got.Points[i].Time), "point %d time", i)
		for fi := range tr.Fields {
			want := tr.Points[i].Value(fi)
			have := got.Points[i].Value(fi)
			if math.IsNaN(want) {
				assert.True(t, math.IsNaN(have), "point %d field %d", i, fi)
			} else {
				assert.Equal(t, want, have, "point %d field %d", i, fi)
			}
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	tr := newTestTrajectory()

	b1, err := Encode(tr)
	require.NoError(t, err)
	b2, err := Encode(tr)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestDecodeCorruptBlob(t *testing.T) {
	_, err := Decode([]byte("not gzip at all"))
	assert.Error(t, err)

	tr := newTestTrajectory()
	blob, err := Encode(tr)
	require.NoError(t, err)
	_, err = Decode(blob[:len(blob)/2])
	assert.Error(t, err)
}
