package rangemap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name              string
		value             float64
		fromLow, fromHigh float64
		toLow, toHigh     float64
		want              float64
	}{
		{"start", 0, 0, 1, 14, 100, 14},
		{"end", 1, 0, 1, 14, 100, 100},
		{"middle", 0.5, 0, 1, 0, 255, 127.5},
		{"inverse", 48, 14, 100, 0, 1, 34.0 / 86.0},
		{"below source", -3, 0, 1, 14, 100, 14},
		{"above source", 7, 0, 1, 14, 100, 100},
		{"reversed destination", 0.25, 0, 1, 100, 0, 75},
		{"reversed source", 0.25, 1, 0, 0, 100, 75},
		{"zero width source", 5, 3, 3, 10, 20, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Map(tt.value, tt.fromLow, tt.fromHigh, tt.toLow, tt.toHigh), 1e-9)
		})
	}
}

func TestMapNaN(t *testing.T) {
	assert.Equal(t, 14.0, Map(math.NaN(), 0, 1, 14, 100))
}

func TestMapStaysInsideDestination(t *testing.T) {
	inputs := []float64{math.Inf(-1), -1e12, -1, -0.0001, 0, 0.3, 0.9999, 1, 2, 1e12, math.Inf(1)}
	ranges := [][4]float64{
		{0, 1, 14, 100},
		{0, 1, 100, 14},
		{-5, 5, 0, 255},
		{10, 2, 7, 13},
	}

	for _, r := range ranges {
		lo, hi := math.Min(r[2], r[3]), math.Max(r[2], r[3])
		for _, x := range inputs {
			got := Map(x, r[0], r[1], r[2], r[3])
			assert.GreaterOrEqual(t, got, lo, "Map(%v, %v)", x, r)
			assert.LessOrEqual(t, got, hi, "Map(%v, %v)", x, r)
		}
	}
}

func TestClamped(t *testing.T) {
	toDMX := Clamped(0, 1, 14, 100)
	toValue := Clamped(14, 100, 0, 1)

	assert.InDelta(t, 48.4, toDMX(0.4), 1e-9)
	assert.InDelta(t, 0.4, toValue(toDMX(0.4)), 1e-9)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 6.0, Clamp(9, 0, 6))
	assert.Equal(t, 0.0, Clamp(-9, 6, 0))
	assert.Equal(t, 0.0, Clamp(math.NaN(), 6, 0))
	assert.Equal(t, 3.0, Clamp(3, 0, 6))
}
