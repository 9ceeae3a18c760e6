package stats_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OldStager01/leakwatch/internal/stats"
)

func TestZScore(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		mean     float64
		stddev   float64
		expected float64
	}{
		{"value at mean", 5, 5, 2, 0},
		{"zero stddev", 42, 5, 0, 0},
		{"negative stddev", 42, 5, -1, 0},
		{"two sigma above", 9, 5, 2, 2},
		{"one sigma below", 3, 5, 2, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stats.ZScore(tt.value, tt.mean, tt.stddev))
		})
	}
}

func TestMeanVariance_Population(t *testing.T) {
	mean, variance := stats.MeanVariance([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 4.0, variance, 1e-9)

	_, sd := stats.MeanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 2.0, sd, 1e-9)

	mean, variance = stats.MeanVariance(nil)
	assert.Zero(t, mean)
	assert.Zero(t, variance)
}

func TestPearson(t *testing.T) {
	assert.InDelta(t, 1.0, stats.Pearson([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.InDelta(t, -1.0, stats.Pearson([]float64{1, 2, 3}, []float64{6, 4, 2}), 1e-9)
	assert.Equal(t, 0.0, stats.Pearson([]float64{1, 1, 1}, []float64{2, 4, 6}), "constant series")
	assert.Equal(t, 0.0, stats.Pearson([]float64{1}, []float64{2}))
	assert.Equal(t, 0.0, stats.Pearson([]float64{1, 2}, []float64{2}))
}

func TestPearson_StaysWithinUnitInterval(t *testing.T) {
	for n := 2; n <= 500; n++ {
		x := make([]float64, n)
		y := make([]float64, n)
		for i := range x {
			x[i] = 1.5 + 0.37*float64(i%17) + 0.011*float64(i)
			y[i] = 3*x[i] + 7
		}
		r := stats.Pearson(x, y)
		assert.LessOrEqual(t, r, 1.0, "n=%d", n)
		assert.GreaterOrEqual(t, stats.Pearson(x, negate(y)), -1.0, "n=%d", n)
	}
}

func negate(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = -v
	}
	return out
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, stats.Clamp01(-3))
	assert.Equal(t, 1.0, stats.Clamp01(7))
	assert.Equal(t, 0.25, stats.Clamp01(0.25))
	assert.Equal(t, 0.0, stats.Clamp01(math.NaN()))
}

func TestTrailingDelta(t *testing.T) {
	_, ok := stats.TrailingDelta([]float64{0.1, 0.2, 0.3, 0.4}, 3, 5)
	assert.False(t, ok)

	delta, ok := stats.TrailingDelta([]float64{0.1, 0.1, 0.5, 0.5, 0.5}, 3, 5)
	assert.True(t, ok)
	assert.InDelta(t, 0.4, delta, 1e-9)

	delta, ok = stats.TrailingDelta([]float64{0.9, 0.2, 0.2, 0.2, 0.5, 0.5, 0.5}, 3, 5)
	assert.True(t, ok)
	assert.InDelta(t, 0.3, delta, 1e-9)
}
