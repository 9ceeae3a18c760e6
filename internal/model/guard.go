package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/OldStager01/leakwatch/internal/resilience"
)

// unavailable wraps a model failure so callers can test for ErrUnavailable
// while cancellation stays recognisable.
func unavailable(name string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
}

type guardedPoint struct {
	m  PointModel
	cb *resilience.CircuitBreaker
}

func (g *guardedPoint) Score(ctx context.Context, x Features) (float64, error) {
	var p float64
	err := g.cb.ExecuteCtx(ctx, func(ctx context.Context) error {
		var err error
		p, err = g.m.Score(ctx, x)
		return err
	})
	if err != nil {
		return 0, unavailable(g.cb.Name(), err)
	}
	return p, nil
}

type guardedSequence struct {
	m  SequenceModel
	cb *resilience.CircuitBreaker
}

func (g *guardedSequence) ReconstructionError(ctx context.Context, x Features) (float64, error) {
	var e float64
	err := g.cb.ExecuteCtx(ctx, func(ctx context.Context) error {
		var err error
		e, err = g.m.ReconstructionError(ctx, x)
		return err
	})
	if err != nil {
		return 0, unavailable(g.cb.Name(), err)
	}
	return e, nil
}

type guardedForecast struct {
	m  ForecastModel
	cb *resilience.CircuitBreaker
}

func (g *guardedForecast) Forecast(ctx context.Context, window []Features) ([]float64, error) {
	var out []float64
	err := g.cb.ExecuteCtx(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.m.Forecast(ctx, window)
		return err
	})
	if err != nil {
		return nil, unavailable(g.cb.Name(), err)
	}
	return out, nil
}

// GuardPoint wraps m so repeated failures open cb and later calls fail
// fast with ErrUnavailable.
func GuardPoint(m PointModel, cb *resilience.CircuitBreaker) PointModel {
	return &guardedPoint{m: m, cb: cb}
}

func GuardSequence(m SequenceModel, cb *resilience.CircuitBreaker) SequenceModel {
	return &guardedSequence{m: m, cb: cb}
}

func GuardForecast(m ForecastModel, cb *resilience.CircuitBreaker) ForecastModel {
	return &guardedForecast{m: m, cb: cb}
}
