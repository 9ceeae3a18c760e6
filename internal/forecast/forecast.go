// Package forecast projects leak risk over an hourly horizon from the most
// recent buffered readings.
package forecast

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OldStager01/leakwatch/internal/buffer"
	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/internal/model"
	"github.com/OldStager01/leakwatch/internal/normalizer"
	"github.com/OldStager01/leakwatch/internal/stats"
	"github.com/OldStager01/leakwatch/pkg/models"
)

const (
	// MinReadings is the input window the forecast model consumes.
	MinReadings = 5

	DefaultHorizon    = 24
	CriticalLevel     = 0.75
	FallbackHours     = 24
	riskFactorFloor   = 0.5
	confidenceDecay   = 0.025
	maxConfidenceLoss = 0.5
	smoothedWeight    = 0.7
)

// ImportanceSource supplies the factor weights attached to risky hours.
type ImportanceSource interface {
	LastImportance() models.Importance
}

type Engine struct {
	registry   *model.Registry
	normalizer *normalizer.Normalizer
	buffer     *buffer.SequenceBuffer
	importance ImportanceSource
	now        func() time.Time
	log        *logrus.Entry
}

type Option func(*Engine)

// WithClock overrides the time source used to stamp predictions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(registry *model.Registry, norm *normalizer.Normalizer, seq *buffer.SequenceBuffer, importance ImportanceSource, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		normalizer: norm,
		buffer:     seq,
		importance: importance,
		now:        time.Now,
		log:        logger.WithComponent("forecast"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Project forecasts horizonHours ahead. Without enough buffered readings or
// a loaded model the forecast is empty with a zero average.
func (e *Engine) Project(ctx context.Context, horizonHours int) models.Forecast {
	empty := models.Forecast{Hours: []models.HourlyPrediction{}}
	if horizonHours <= 0 {
		return empty
	}

	readings := e.buffer.Last(MinReadings)
	if len(readings) < MinReadings {
		e.log.WithField("buffered", len(readings)).Debug("Not enough readings to forecast")
		return empty
	}

	m, err := e.registry.Forecast.Get()
	if err != nil {
		e.log.WithError(err).Debug("Forecast model unavailable")
		return empty
	}

	normalized := e.normalizer.NormalizeAll(readings)
	window := make([]model.Features, len(normalized))
	for i, n := range normalized {
		window[i] = n.Vector()
	}

	out, err := m.Forecast(ctx, window)
	if err != nil {
		if ctx.Err() == nil {
			e.log.WithError(err).Warn("Forecast model failed")
		}
		return empty
	}
	n := min(len(out), horizonHours)
	if n == 0 {
		return empty
	}
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = stats.Clamp01(out[i])
	}

	probs := Smooth(raw)
	importance := e.importance.LastImportance()
	now := e.now()

	hours := make([]models.HourlyPrediction, len(raw))
	for i := range raw {
		offset := i + 1
		h := models.HourlyPrediction{
			HourOffset:  offset,
			Timestamp:   now.Add(time.Duration(offset) * time.Hour),
			Probability: probs[i],
			Confidence:  Confidence(offset),
		}
		if raw[i] > riskFactorFloor {
			h.RiskFactors = make(models.Importance, len(importance))
			for f, w := range importance {
				h.RiskFactors[f] = w * h.Confidence
			}
		}
		hours[i] = h
	}

	return models.Forecast{Average: WeightedAverage(probs), Hours: hours}
}

// Confidence decays linearly with the hour offset, never below one half.
func Confidence(offset int) float64 {
	loss := float64(offset) * confidenceDecay
	if loss > maxConfidenceLoss {
		loss = maxConfidenceLoss
	}
	return 1 - loss
}

// Smooth applies a centered three-point moving average and blends it back
// with the raw curve. Curves shorter than three points are returned as is.
func Smooth(raw []float64) []float64 {
	out := make([]float64, len(raw))
	copy(out, raw)
	if len(raw) < 3 {
		return out
	}
	for i := range raw {
		lo, hi := i-1, i+2
		if lo < 0 {
			lo = 0
		}
		if hi > len(raw) {
			hi = len(raw)
		}
		smoothed := stats.Mean(raw[lo:hi])
		out[i] = smoothedWeight*smoothed + (1-smoothedWeight)*raw[i]
	}
	return out
}

// WeightedAverage weights the i-th value by 1/(i+1).
func WeightedAverage(probs []float64) float64 {
	var sum, weights float64
	for i, p := range probs {
		w := 1 / float64(i+1)
		sum += p * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}
