package ingest

import (
	"math"

	"github.com/seaway-data/shiptrace/internal/config"
)

// applyClip runs one clip rule over a single value. Values failing the rule
// become NaN (missing) so the interpolation pass can repair interior gaps;
// they are never silently kept.
func applyClip(rule config.ClipRule, v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	switch rule.Kind {
	case "range":
		if rule.Min != nil && v < *rule.Min {
			return math.NaN()
		}
		if rule.Max != nil && v > *rule.Max {
			return math.NaN()
		}
		return v
	case "enum":
		for _, allowed := range rule.Allow {
			if v == allowed {
				return v
			}
		}
		return math.NaN()
	default:
		return v
	}
}

// clipSeries applies a rule to every value of a series in place and returns
// the number of values replaced with missing.
func clipSeries(rule config.ClipRule, values []float64) int {
	replaced := 0
	for i, v := range values {
		clipped := applyClip(rule, v)
		if math.IsNaN(clipped) && !math.IsNaN(v) {
			replaced++
		}
		values[i] = clipped
	}
	return replaced
}
