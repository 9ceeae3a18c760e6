// Package scoring turns readings into leak probabilities using the injected
// models, the shared sequence buffer and the window heuristics.
package scoring

import (
	"context"
	"errors"
	"math"
	"sync"
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
	ensembleMinReadings = 3
	seriesWindow        = 5
	forecastHorizon     = 24

	weightPoint    = 0.6
	weightSequence = 0.2
	weightPCA      = 0.2

	sequenceFlagScore = 0.3
)

// Projector supplies the forward-looking risk used by series detection.
type Projector interface {
	Project(ctx context.Context, horizonHours int) models.Forecast
}

// Engine is the leak scoring engine. It is the single writer of the
// sequence buffer, the prediction history and the feature stats.
//
// Polled windows overlap, so a reading only feeds the feature stats and the
// history the first time it is seen. lastSeen is the newest timestamp
// ingested so far.
type Engine struct {
	registry   *model.Registry
	normalizer *normalizer.Normalizer
	buffer     *buffer.SequenceBuffer
	history    *buffer.PredictionHistory
	projector  Projector
	log        *logrus.Entry

	mu       sync.Mutex
	lastSeen time.Time
}

func New(registry *model.Registry, norm *normalizer.Normalizer, seq *buffer.SequenceBuffer, history *buffer.PredictionHistory) *Engine {
	return &Engine{
		registry:   registry,
		normalizer: norm,
		buffer:     seq,
		history:    history,
		log:        logger.WithComponent("scoring"),
	}
}

// SetProjector wires the forecast engine used by DetectInSeries.
func (e *Engine) SetProjector(p Projector) {
	e.projector = p
}

// admit reports which readings are newer than anything ingested before the
// call and advances lastSeen past them. Untimestamped readings always count.
func (e *Engine) admit(readings ...models.SensorReading) []bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := e.lastSeen
	fresh := make([]bool, len(readings))
	for i, r := range readings {
		fresh[i] = r.Timestamp.IsZero() || r.Timestamp.After(seen)
		if r.Timestamp.After(e.lastSeen) {
			e.lastSeen = r.Timestamp
		}
	}
	return fresh
}

// learn folds the fresh readings into the feature stats.
func (e *Engine) learn(readings []models.SensorReading, fresh []bool) {
	for i, r := range readings {
		if fresh[i] {
			e.normalizer.Update(r)
		}
	}
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) pointScore(ctx context.Context, x model.Features) (float64, error) {
	m, err := e.registry.Point.Get()
	if err != nil {
		return 0, err
	}
	p, err := m.Score(ctx, x)
	if err != nil {
		return 0, err
	}
	return stats.Clamp01(p), nil
}

// PointScore scores normalized features with the point model only. It
// touches no shared state.
func (e *Engine) PointScore(ctx context.Context, x model.Features) (float64, error) {
	return e.pointScore(ctx, x)
}

// Predict scores one reading and records it. An unavailable point model
// yields 0 but the reading is still ingested; a cancelled call yields 0
// and records nothing.
func (e *Engine) Predict(ctx context.Context, r models.SensorReading) float64 {
	x := e.normalizer.Normalize(r).Vector()
	base, err := e.pointScore(ctx, x)
	if cancelled(ctx, err) {
		return 0
	}

	e.admit(r)
	e.buffer.Push(r)
	e.normalizer.Update(r)

	if err != nil {
		e.log.WithError(err).Warn("Point model unavailable, scoring reading as 0")
		return 0
	}

	final := stats.Clamp01(e.ensemble(ctx, base, x))
	if ctx.Err() != nil {
		return 0
	}
	e.history.Push(final)
	return final
}

// score evaluates a reading that is already in the buffer.
func (e *Engine) score(ctx context.Context, r models.SensorReading) (float64, error) {
	x := e.normalizer.Normalize(r).Vector()
	base, err := e.pointScore(ctx, x)
	if err != nil {
		return 0, err
	}
	return stats.Clamp01(e.ensemble(ctx, base, x)), nil
}

func (e *Engine) ensemble(ctx context.Context, base float64, x model.Features) float64 {
	seqModel, err := e.registry.Sequence.Get()
	if err != nil {
		return base
	}
	scorer, err := e.registry.PCA.Get()
	if err != nil {
		return base
	}
	if e.buffer.Len() < ensembleMinReadings {
		return base
	}

	recErr, err := seqModel.ReconstructionError(ctx, x)
	if err != nil {
		if !cancelled(ctx, err) {
			e.log.WithError(err).Debug("Sequence model failed, using point score")
		}
		return base
	}
	seq := 1 - 1/(1+math.Exp(5*recErr))
	pcaScore := scorer.Score(e.normalizer.NormalizeAll(e.buffer.Snapshot()))

	return weightPoint*base + weightSequence*seq + weightPCA*pcaScore
}

// PCAScore scores the current buffer against the PCA basis, 0 when no
// basis is loaded or the buffer is short.
func (e *Engine) PCAScore() float64 {
	scorer, err := e.registry.PCA.Get()
	if err != nil {
		return 0
	}
	return scorer.Score(e.normalizer.NormalizeAll(e.buffer.Snapshot()))
}

// PredictSequence replaces the buffer with the tail of readings and scores
// the newest reading in the context of the whole window. Readings not seen
// before update the feature stats.
func (e *Engine) PredictSequence(ctx context.Context, readings []models.SensorReading) float64 {
	if len(readings) == 0 {
		return 0
	}
	e.buffer.Replace(readings)
	window := e.buffer.Snapshot()

	latest, err := e.score(ctx, readings[len(readings)-1])
	if cancelled(ctx, err) {
		return 0
	}
	e.learn(readings, e.admit(readings...))
	if err != nil {
		e.log.WithError(err).Warn("Point model unavailable for sequence prediction")
	}

	var seq float64
	if len(window) >= ensembleMinReadings && AnalyzeSequence(window).Anomalous() {
		seq = sequenceFlagScore
	}

	final := stats.Clamp01(weightPoint*latest + weightSequence*seq + weightPCA*e.PCAScore())
	e.history.Push(final)
	return final
}

// SeriesDecision is the evidence behind a DetectInSeries verdict.
type SeriesDecision struct {
	Leak            bool            `json:"leak"`
	Average         float64         `json:"average"`
	Trend           float64         `json:"trend"`
	ForecastRisk    float64         `json:"forecast_risk"`
	Signals         SequenceSignals `json:"signals"`
	RuleBased       bool            `json:"rule_based"`
	Predictions     []float64       `json:"predictions,omitempty"`
	ReadingsChecked int             `json:"readings_checked"`
}

// DetectInSeries decides whether the series shows a leak.
func (e *Engine) DetectInSeries(ctx context.Context, readings []models.SensorReading, threshold float64) bool {
	return e.EvaluateSeries(ctx, readings, threshold).Leak
}

// EvaluateSeries is DetectInSeries with the supporting evidence. When the
// point model is unavailable the fixed rules decide. Readings newer than the
// last evaluated series update the feature stats, and their tail
// predictions enter the history. A cancelled call changes neither.
func (e *Engine) EvaluateSeries(ctx context.Context, readings []models.SensorReading, threshold float64) SeriesDecision {
	d := SeriesDecision{ReadingsChecked: len(readings)}
	if len(readings) < ensembleMinReadings {
		return d
	}

	e.buffer.Replace(readings)
	window := e.buffer.Snapshot()

	tail := readings
	if len(tail) > seriesWindow {
		tail = tail[len(tail)-seriesWindow:]
	}

	preds := make([]float64, 0, len(tail))
	for _, r := range tail {
		p, err := e.score(ctx, r)
		if cancelled(ctx, err) {
			return SeriesDecision{ReadingsChecked: len(readings)}
		}
		if err != nil {
			e.log.WithError(err).Warn("Point model unavailable, using rule-based series detection")
			e.learn(readings, e.admit(readings...))
			d.RuleBased = true
			d.Leak = RuleLeakInSeries(readings)
			return d
		}
		preds = append(preds, p)
	}

	fresh := e.admit(readings...)
	e.learn(readings, fresh)
	offset := len(readings) - len(tail)
	for i, p := range preds {
		if fresh[offset+i] {
			e.history.Push(p)
		}
	}

	half := len(preds) / 2
	d.Predictions = preds
	d.Average = stats.Mean(preds)
	d.Trend = stats.Mean(preds[len(preds)-half:]) - stats.Mean(preds[:half])
	d.Signals = AnalyzeSequence(window)
	if e.projector != nil {
		d.ForecastRisk = e.projector.Project(ctx, forecastHorizon).Average
	}

	d.Leak = d.Average > threshold ||
		(d.Signals.Anomalous() && (d.Trend > 0.1 || d.ForecastRisk > threshold*0.8))
	return d
}

// DetectReading scores a single reading and flags a leak when the score
// crosses threshold or the last three buffered readings swing sharply in
// both flow and pressure.
func (e *Engine) DetectReading(ctx context.Context, r models.SensorReading, threshold float64) bool {
	p := e.Predict(ctx, r)
	if ctx.Err() != nil {
		return false
	}
	if p == 0 && !e.registry.Point.Ready() {
		return RuleLeak(r)
	}

	last := e.buffer.Last(3)
	if len(last) < 3 {
		return p > threshold
	}
	flow := make([]float64, len(last))
	pressure := make([]float64, len(last))
	for i, x := range last {
		flow[i], pressure[i] = x.Flow, x.Pressure
	}
	_, flowVar := stats.MeanVariance(flow)
	_, pressureVar := stats.MeanVariance(pressure)

	return p > threshold || (flowVar > 1.5 && pressureVar > 10)
}

// History returns the trailing fused probabilities, oldest first.
func (e *Engine) History() []float64 {
	return e.history.Snapshot()
}

// Buffered returns the current sequence buffer contents.
func (e *Engine) Buffered() []models.SensorReading {
	return e.buffer.Snapshot()
}
