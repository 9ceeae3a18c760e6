// Package stats holds the numeric helpers shared by the detection
// components. Every helper is total: empty input and zero variance produce
// neutral values instead of NaN or division faults.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// MeanVariance returns the mean and population variance of xs.
func MeanVariance(xs []float64) (mean, variance float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.PopMeanVariance(xs, nil)
}

// MeanStdDev returns the mean and population standard deviation of xs.
func MeanStdDev(xs []float64) (mean, stddev float64) {
	mean, variance := MeanVariance(xs)
	return mean, math.Sqrt(variance)
}

// Pearson returns the correlation coefficient of x and y, or 0 when it is
// undefined. Rounding can push a perfect fit just past ±1, so the result is
// clamped.
func Pearson(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return Clamp(r, -1, 1)
}

// ZScore is (value-mean)/stddev, or 0 when stddev is not positive.
func ZScore(value, mean, stddev float64) float64 {
	if stddev <= 0 {
		return 0
	}
	return (value - mean) / stddev
}

func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// TrailingDelta compares the mean of the last k values with the mean of up
// to k values preceding them. ok is false when xs has fewer than minLen
// entries.
func TrailingDelta(xs []float64, k, minLen int) (delta float64, ok bool) {
	if len(xs) < minLen || len(xs) <= k {
		return 0, false
	}
	recent := xs[len(xs)-k:]
	earlier := xs[:len(xs)-k]
	if len(earlier) > k {
		earlier = earlier[len(earlier)-k:]
	}
	return Mean(recent) - Mean(earlier), true
}
