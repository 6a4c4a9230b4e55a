package simutils

import "math"

// Round to two decimal places, as exposed by level sensors.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// No values outside [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Simulated consumption cannot be negative
func NonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
