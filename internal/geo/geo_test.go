package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindAngle(t *testing.T) {
	cases := []struct {
		u, v, want float64
	}{
		{1, 0, 0},    // eastward
		{0, 1, 90},   // northward
		{-1, 0, 180}, // westward
		{0, -1, 270}, // southward
		{3, 4, 53.13010235415598},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, WindAngle(tc.u, tc.v), 1e-9, "WindAngle(%v, %v)", tc.u, tc.v)
	}
}

func TestNormalizeAngle(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeAngle(360))
	assert.Equal(t, 10.0, NormalizeAngle(370))
	assert.Equal(t, 350.0, NormalizeAngle(-10))
	assert.Equal(t, 0.0, NormalizeAngle(-720))
}

func TestDisplacementRoundTrip(t *testing.T) {
	lat1, lon1 := 30.0, 120.0
	lat2, lon2 := DisplacementToLatLon(lat1, lon1, 5000, -3000)

	dx, dy := LatLonToDisplacement(lat1, lon1, lat2, lon2)
	assert.InDelta(t, 5000, dx, 1)
	assert.InDelta(t, -3000, dy, 1)
}
