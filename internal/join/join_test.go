package join

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaway-data/shiptrace/internal/envgrid"
	"github.com/seaway-data/shiptrace/internal/traj"
)

func uniformGrid(u, v float64) *envgrid.Grid {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	times := []float64{float64(t0.Unix()), float64(t0.Add(6 * time.Hour).Unix())}
	lats := []float64{30, 31}
	lons := []float64{120, 121}
	n := len(times) * len(lats) * len(lons)
	us := make([]float64, n)
	vs := make([]float64, n)
	for i := range us {
		us[i] = u
		vs[i] = v
	}
	return &envgrid.Grid{
		Source: "test",
		Times:  times,
		Lats:   lats,
		Lons:   lons,
		Fields: map[string][]float64{"u10": us, "v10": vs},
	}
}

func trajectoryAt(points ...[3]float64) *traj.Trajectory {
	t := traj.New("voyage.csv", "h", []traj.Field{{Name: "speed", Unit: "mps"}})
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, p := range points {
		t.Points = append(t.Points, traj.Point{
			Time:   base.Add(time.Duration(p[0]) * time.Hour),
			Lat:    p[1],
			Lon:    p[2],
			Values: []float64{10},
		})
	}
	return t
}

func TestJoinAppendsWindFields(t *testing.T) {
	tr := trajectoryAt([3]float64{0, 30.5, 120.5}, [3]float64{1, 30.6, 120.6})
	out := Join(tr, uniformGrid(3, 4), []int{10})

	assert.Equal(t, []string{"speed", "u10", "v10", "w10", "w10_angle"}, out.FieldNames())
	for i := range out.Points {
		assert.InDelta(t, 3.0, out.Points[i].Value(1), 1e-9)
		assert.InDelta(t, 4.0, out.Points[i].Value(2), 1e-9)
		assert.InDelta(t, 5.0, out.Points[i].Value(3), 1e-9, "magnitude is hypot(u, v)")
		assert.InDelta(t, 53.130, out.Points[i].Value(4), 1e-3, "direction is atan2(v, u)")
	}
	// original fields are untouched
	assert.Equal(t, 10.0, out.Points[0].Value(0))
}

func TestJoinOutsideExtentStaysMissing(t *testing.T) {
	// second point is far outside the grid
	tr := trajectoryAt([3]float64{0, 30.5, 120.5}, [3]float64{1, 45.0, 150.0})
	out := Join(tr, uniformGrid(3, 4), []int{10})

	assert.False(t, math.IsNaN(out.Points[0].Value(out.FieldIndex("w10"))))
	for _, name := range []string{"u10", "v10", "w10", "w10_angle"} {
		assert.True(t, math.IsNaN(out.Points[1].Value(out.FieldIndex(name))), name)
	}
}

func TestJoinSkipsAbsentLevels(t *testing.T) {
	tr := trajectoryAt([3]float64{0, 30.5, 120.5})
	out := Join(tr, uniformGrid(3, 4), []int{10, 100})

	// level 100 has no grid fields: nothing is added for it
	assert.Equal(t, -1, out.FieldIndex("u100"))
	assert.Equal(t, -1, out.FieldIndex("w100"))
	assert.GreaterOrEqual(t, out.FieldIndex("w10"), 0)
}

func TestJoinNilInputs(t *testing.T) {
	tr := trajectoryAt([3]float64{0, 30.5, 120.5})
	assert.Same(t, tr, Join(tr, nil, []int{10}))
	require.Nil(t, Join(nil, uniformGrid(1, 1), []int{10}))
}

func TestJoinNorthWindAngle(t *testing.T) {
	// pure northward wind (v > 0) points to 90 degrees
	tr := trajectoryAt([3]float64{0, 30.5, 120.5})
	out := Join(tr, uniformGrid(0, 7), []int{10})
	assert.InDelta(t, 90.0, out.Points[0].Value(out.FieldIndex("w10_angle")), 1e-9)
	assert.InDelta(t, 7.0, out.Points[0].Value(out.FieldIndex("w10")), 1e-9)
}
