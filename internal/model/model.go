// Package model defines the contracts of the injected scoring models and
// the machinery to load, hold and guard them.
package model

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means a model is not loaded or its call failed.
	ErrUnavailable   = errors.New("model unavailable")
	ErrShapeMismatch = errors.New("model input shape mismatch")
)

// Features is one normalized reading in model input order.
type Features = [3]float64

// PointModel returns a leak probability in [0,1] for one reading.
type PointModel interface {
	Score(ctx context.Context, x Features) (float64, error)
}

// SequenceModel returns the reconstruction error of one reading.
type SequenceModel interface {
	ReconstructionError(ctx context.Context, x Features) (float64, error)
}

// ForecastModel maps a window of readings to per-hour leak probabilities.
type ForecastModel interface {
	Forecast(ctx context.Context, window []Features) ([]float64, error)
}

type PointFunc func(ctx context.Context, x Features) (float64, error)

func (f PointFunc) Score(ctx context.Context, x Features) (float64, error) {
	return f(ctx, x)
}

type SequenceFunc func(ctx context.Context, x Features) (float64, error)

func (f SequenceFunc) ReconstructionError(ctx context.Context, x Features) (float64, error) {
	return f(ctx, x)
}

type ForecastFunc func(ctx context.Context, window []Features) ([]float64, error)

func (f ForecastFunc) Forecast(ctx context.Context, window []Features) ([]float64, error) {
	return f(ctx, window)
}
