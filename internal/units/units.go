// Package units converts raw runtime quantities into the units carried on
// report envelopes. All conversions round to two decimal places.
package units

import (
	"math"
	"time"
)

const bytesPerMegabyte = 1024 * 1024

// ByteToMegabytes converts a byte count to mebibytes, rounded to two decimals.
func ByteToMegabytes(n uint64) float64 {
	return Round2(float64(n) / bytesPerMegabyte)
}

// NsToMs converts nanoseconds to milliseconds, rounded to two decimals.
func NsToMs(ns int64) float64 {
	return Round2(float64(ns) / float64(time.Millisecond))
}

// DurationToMs converts d to milliseconds, rounded to two decimals.
func DurationToMs(d time.Duration) float64 {
	return NsToMs(int64(d))
}

// Round2 rounds v to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
