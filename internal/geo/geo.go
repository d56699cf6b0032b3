// Package geo provides small spherical-earth helpers shared by the joiner
// and plotting layers.
package geo

import "math"

// EarthRadiusM is the mean earth radius used for flat-earth displacement
// approximations.
const EarthRadiusM = 6371000.0

// DisplacementToLatLon offsets (lat, lon) in degrees by an eastward dx and
// northward dy displacement in meters. The approximation is local and breaks
// down near the poles.
func DisplacementToLatLon(lat, lon, dx, dy float64) (float64, float64) {
	latRad := lat * math.Pi / 180

	dLat := dy / EarthRadiusM
	dLon := dx / (EarthRadiusM * math.Cos(latRad))

	return lat + dLat*180/math.Pi, lon + dLon*180/math.Pi
}

// LatLonToDisplacement returns the eastward and northward displacement in
// meters from (lat1, lon1) to (lat2, lon2), using the start latitude for the
// longitude scale.
func LatLonToDisplacement(lat1, lon1, lat2, lon2 float64) (dx, dy float64) {
	lat1Rad := lat1 * math.Pi / 180

	dy = (lat2 - lat1) * math.Pi / 180 * EarthRadiusM
	dx = (lon2 - lon1) * math.Pi / 180 * EarthRadiusM * math.Cos(lat1Rad)
	return dx, dy
}

// WindAngle returns the direction of the wind vector (u eastward, v northward)
// in degrees, atan2 convention, normalised to [0, 360).
func WindAngle(u, v float64) float64 {
	deg := math.Atan2(v, u) * 180 / math.Pi
	return NormalizeAngle(deg)
}

// NormalizeAngle maps an angle in degrees onto [0, 360).
func NormalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
