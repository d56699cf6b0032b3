// Package units provides shared constants and conversion for speed units.
package units

// Unit constants. The pipeline normalises all speeds to m/s on load;
// source files commonly report ship and wind speed in knots.
const (
	MPS   = "mps"
	Knots = "knots"
	KMPH  = "kmph"
	KPH   = "kph"
	MPH   = "mph"
)

// ValidUnits contains all valid unit values.
var ValidUnits = []string{MPS, Knots, KMPH, KPH, MPH}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages.
func GetValidUnitsString() string {
	return "mps, knots, kmph, kph, mph"
}

// ToMPS converts a speed in the given source units to meters per second.
// Unknown units pass through unchanged.
func ToMPS(speed float64, sourceUnits string) float64 {
	switch sourceUnits {
	case Knots:
		return speed * 0.5144
	case KMPH, KPH:
		return speed / 3.6
	case MPH:
		return speed / 2.2369362920544
	case MPS:
		return speed
	default:
		return speed
	}
}

// FromMPS converts a speed in meters per second to the target units.
// Unknown units pass through unchanged.
func FromMPS(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case Knots:
		return speedMPS / 0.5144
	case KMPH, KPH:
		return speedMPS * 3.6
	case MPH:
		return speedMPS * 2.2369362920544
	case MPS:
		return speedMPS
	default:
		return speedMPS
	}
}
