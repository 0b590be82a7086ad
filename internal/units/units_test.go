package units

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestByteToMegabytes(t *testing.T) {
	tests := []struct {
		name  string
		bytes uint64
		want  float64
	}{
		{"zero", 0, 0},
		{"one mebibyte", 1048576, 1.00},
		{"one and a half", 1572864, 1.5},
		{"rounds down", 1048576 + 1000, 1.00},
		{"rounds up", 1048576 + 10000, 1.01},
		{"large heap", 8 << 30, 8192},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ByteToMegabytes(tt.bytes))
		})
	}
}

func TestNsToMs(t *testing.T) {
	assert.Equal(t, 5.0, NsToMs(5_000_000))
	assert.Equal(t, 0.12, NsToMs(123_456))
	assert.Equal(t, 1.24, DurationToMs(1236*time.Microsecond))
	assert.Equal(t, 0.0, DurationToMs(0))
}

func TestRound2_PropertyBased(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("rounding is idempotent", prop.ForAll(
		func(v float64) bool {
			once := Round2(v)
			return Round2(once) == once
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("byte conversion stays within half a hundredth of the exact value", prop.ForAll(
		func(n uint64) bool {
			exact := float64(n) / bytesPerMegabyte
			return math.Abs(ByteToMegabytes(n)-exact) <= 0.005+1e-9
		},
		gen.UInt64Range(0, 1<<44),
	))

	properties.Property("byte conversion is monotonic", prop.ForAll(
		func(a, b uint64) bool {
			if a > b {
				a, b = b, a
			}
			return ByteToMegabytes(a) <= ByteToMegabytes(b)
		},
		gen.UInt64Range(0, 1<<40),
		gen.UInt64Range(0, 1<<40),
	))

	properties.TestingRun(t)
}
