// Package rangemap maps values linearly between two closed intervals.
package rangemap

import "math"

// Mapper converts a value from one interval into another.
type Mapper func(value float64) float64

// Map maps value from [fromLow, fromHigh] to [toLow, toHigh].
// The input is clamped to the source interval first, so the result never
// leaves the destination interval. Intervals may be given in either order.
// A zero-width source interval and a NaN input both yield toLow.
func Map(value, fromLow, fromHigh, toLow, toHigh float64) float64 {
	if fromHigh == fromLow || math.IsNaN(value) {
		return toLow
	}

	value = clamp(value, fromLow, fromHigh)
	out := toLow + (value-fromLow)/(fromHigh-fromLow)*(toHigh-toLow)

	return clamp(out, toLow, toHigh)
}

// Clamped returns Map bound to the given intervals.
func Clamped(fromLow, fromHigh, toLow, toHigh float64) Mapper {
	return func(value float64) float64 {
		return Map(value, fromLow, fromHigh, toLow, toHigh)
	}
}

// Clamp limits value to the interval spanned by a and b. NaN becomes the lower bound.
func Clamp(value, a, b float64) float64 {
	if math.IsNaN(value) {
		return math.Min(a, b)
	}
	return clamp(value, a, b)
}

func clamp(value, a, b float64) float64 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return math.Max(lo, math.Min(hi, value))
}
