// Package safe provides overflow-checked integer conversions for values
// read from runtime counters and OS interfaces.
package safe

import (
	"math"
)

// Counter is a monotonically increasing runtime counter.
type Counter interface {
	~int64 | ~uint64
}

// CounterDelta returns cur-prev as an int. A counter that went backwards
// yields 0, and a delta beyond math.MaxInt is clamped.
func CounterDelta[T Counter](cur, prev T) int {
	if cur <= prev {
		return 0
	}
	d := uint64(cur - prev)
	if d > math.MaxInt {
		return math.MaxInt
	}
	return int(d)
}

// IntToInt32 converts v to int32, clamping to the int32 range.
// Returns the converted value and a boolean indicating whether clamping occurred.
func IntToInt32(v int) (int32, bool) {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32, true
	case v < math.MinInt32:
		return math.MinInt32, true
	}
	return int32(v), false
}
