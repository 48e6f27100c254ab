package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := []float64{0, 0, 5, 10, 10, 10, 20, 40}

	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{name: "zero pins to floor", v: 0, want: 0},
		{name: "negative pins to floor", v: -3, want: 0},
		{name: "below all positives", v: 1, want: 100.0 * 2 / 8},
		{name: "tie averages rank range", v: 10, want: 100.0 * (3 + 6) / 2 / 8},
		{name: "above all", v: 100, want: 100},
		{name: "max value", v: 40, want: 100.0 * (7 + 8) / 2 / 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percentile(sorted, tt.v), 1e-9)
		})
	}
}

func TestPercentileEmpty(t *testing.T) {
	assert.Zero(t, Percentile(nil, 5))
	assert.Zero(t, Percentile([]float64{}, 5))
}

func TestPercentileMonotonic(t *testing.T) {
	sorted := []float64{1, 2, 2, 3, 7, 7, 7, 9, 12}

	prev := -1.0
	for v := 0.0; v <= 15; v += 0.25 {
		p := Percentile(sorted, v)
		require.GreaterOrEqual(t, p, prev, "percentile must not decrease at v=%v", v)
		require.GreaterOrEqual(t, p, 0.0)
		require.LessOrEqual(t, p, 100.0)
		prev = p
	}
}

func TestPercentileIdenticalValues(t *testing.T) {
	sorted := []float64{3, 3, 3, 3}

	first := Percentile(sorted, 3)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Percentile(sorted, 3))
	}
}

func TestSafetyScore(t *testing.T) {
	assert.InDelta(t, 100.0, SafetyScore(0), 1e-9)
	assert.InDelta(t, 0.0, SafetyScore(100), 1e-9)
	assert.InDelta(t, 62.5, SafetyScore(37.5), 1e-9)
	// Clipped at the edges even for out-of-range input.
	assert.InDelta(t, 0.0, SafetyScore(130), 1e-9)
	assert.InDelta(t, 100.0, SafetyScore(-5), 1e-9)
}
