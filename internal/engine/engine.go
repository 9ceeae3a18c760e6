// Package engine wires the detection components of one installation into
// the ingestion pipeline: normalize, buffer, baseline, score, fuse, explain
// and, on demand, forecast.
package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OldStager01/leakwatch/internal/baseline"
	"github.com/OldStager01/leakwatch/internal/buffer"
	"github.com/OldStager01/leakwatch/internal/events"
	"github.com/OldStager01/leakwatch/internal/explain"
	"github.com/OldStager01/leakwatch/internal/forecast"
	"github.com/OldStager01/leakwatch/internal/fusion"
	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/internal/metrics"
	"github.com/OldStager01/leakwatch/internal/model"
	"github.com/OldStager01/leakwatch/internal/normalizer"
	"github.com/OldStager01/leakwatch/internal/scoring"
	"github.com/OldStager01/leakwatch/internal/threshold"
	"github.com/OldStager01/leakwatch/pkg/models"
)

type Config struct {
	InstallationID      string
	SequenceLength      int
	HistoryLength       int
	InitialThreshold    float64
	CriticalProbability float64
	ForecastHorizon     int
	MaxFeedback         int
	Baseline            baseline.Config
}

func DefaultConfig() Config {
	return Config{
		SequenceLength:      buffer.DefaultSequenceLength,
		HistoryLength:       buffer.DefaultHistoryLength,
		InitialThreshold:    threshold.DefaultInitial,
		CriticalProbability: forecast.CriticalLevel,
		ForecastHorizon:     forecast.DefaultHorizon,
		MaxFeedback:         threshold.DefaultMaxFeedback,
		Baseline:            baseline.DefaultConfig(),
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.SequenceLength <= 0 {
		c.SequenceLength = d.SequenceLength
	}
	if c.HistoryLength <= 0 {
		c.HistoryLength = d.HistoryLength
	}
	if c.CriticalProbability <= 0 {
		c.CriticalProbability = d.CriticalProbability
	}
	if c.ForecastHorizon <= 0 {
		c.ForecastHorizon = d.ForecastHorizon
	}
	if c.MaxFeedback <= 0 {
		c.MaxFeedback = d.MaxFeedback
	}
	c.Baseline.InstallationID = c.InstallationID
}

// Engine owns every piece of shared detection state for one installation.
// It is safe for concurrent use by the monitor loop and API handlers.
type Engine struct {
	cfg Config

	registry   *model.Registry
	normalizer *normalizer.Normalizer
	sequence   *buffer.SequenceBuffer
	history    *buffer.PredictionHistory

	baseline   *baseline.Baseline
	scoring    *scoring.Engine
	explainer  *explain.Engine
	forecaster *forecast.Engine
	fuser      *fusion.Fuser
	threshold  *threshold.Controller

	publisher    *events.Publisher
	metrics      *metrics.Metrics
	onCalibrated func(*baseline.Profile)
	now          func() time.Time
	log          *logrus.Entry
}

type Option func(*Engine)

func WithPublisher(p *events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCalibrationHook runs fn after the baseline calibrates, e.g. to
// persist the new profile.
func WithCalibrationHook(fn func(*baseline.Profile)) Option {
	return func(e *Engine) { e.onCalibrated = fn }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(cfg Config, registry *model.Registry, opts ...Option) *Engine {
	cfg.applyDefaults()
	if registry == nil {
		registry = model.NewRegistry(model.WithWindow(cfg.SequenceLength))
	}

	e := &Engine{
		cfg:        cfg,
		registry:   registry,
		normalizer: normalizer.New(),
		sequence:   buffer.NewSequenceBuffer(cfg.SequenceLength),
		history:    buffer.NewPredictionHistory(cfg.HistoryLength),
		now:        time.Now,
		log:        logger.WithInstallation(cfg.InstallationID).WithField("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.baseline = baseline.New(cfg.Baseline,
		baseline.WithClock(e.now),
		baseline.WithCalibrationHook(e.calibrated),
	)
	e.threshold = threshold.New(cfg.InitialThreshold,
		threshold.WithMaxFeedback(cfg.MaxFeedback),
		threshold.WithChangeHook(e.thresholdChanged),
	)
	e.scoring = scoring.New(registry, e.normalizer, e.sequence, e.history)
	e.explainer = explain.New(e.scoring, e.normalizer, e.threshold.Value)
	e.forecaster = forecast.New(registry, e.normalizer, e.sequence, e.explainer, forecast.WithClock(e.now))
	e.scoring.SetProjector(e.forecaster)
	e.fuser = fusion.New(e.explainer)

	if e.metrics != nil {
		e.metrics.SetThreshold(cfg.InstallationID, e.threshold.Value())
	}
	return e
}

func (e *Engine) calibrated(p *baseline.Profile) {
	e.publisher.BaselineCalibrated(e.baseline.Stats())
	if e.onCalibrated != nil {
		e.onCalibrated(p)
	}
}

func (e *Engine) thresholdChanged(change models.ThresholdChange) {
	if e.metrics != nil {
		e.metrics.SetThreshold(e.cfg.InstallationID, change.New)
	}
	e.publisher.ThresholdAdjusted(change)
}

func (e *Engine) InstallationID() string {
	return e.cfg.InstallationID
}

// Process runs one reading through the full pipeline. The only error is
// the context's, in which case the assessment is empty.
func (e *Engine) Process(ctx context.Context, r models.SensorReading) (*models.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	res := e.baseline.Evaluate(r)
	fused := e.fuser.Fuse(ctx, r, res)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	thr := e.threshold.Value()
	a := &models.Assessment{
		Reading:       r,
		Timestamp:     e.now(),
		BaselineScore: res.Score,
		Calibrated:    res.Calibrated,
		Probability:   fused.Probability,
		Risk:          models.ClassifyRisk(fused.Probability, thr),
		Threshold:     thr,
		Explanation:   fused,
		Description:   e.explainer.Describe(fused.Probability, fused.FeatureImportance),
	}

	if e.metrics != nil {
		id := e.cfg.InstallationID
		e.metrics.IncReadings(id)
		e.metrics.SetBaselineScore(id, res.Score)
		e.metrics.SetLeakProbability(id, a.Probability)
		e.metrics.SetCalibrationProgress(id, e.baseline.Progress())
		e.metrics.ObserveInference("process", time.Since(start))
	}

	e.publisher.ReadingIngested(a)
	if a.IsLeak() {
		e.publisher.LeakDetected(a.Probability, a)
	}
	return a, nil
}

// EvaluateBaseline scores r against the installation baseline only.
func (e *Engine) EvaluateBaseline(r models.SensorReading) baseline.Result {
	res := e.baseline.Evaluate(r)
	if e.metrics != nil {
		e.metrics.SetBaselineScore(e.cfg.InstallationID, res.Score)
		e.metrics.SetCalibrationProgress(e.cfg.InstallationID, e.baseline.Progress())
	}
	return res
}

// DetectInSeries evaluates a series at the current threshold.
func (e *Engine) DetectInSeries(ctx context.Context, readings []models.SensorReading) scoring.SeriesDecision {
	start := time.Now()
	d := e.scoring.EvaluateSeries(ctx, readings, e.threshold.Value())
	if e.metrics != nil {
		e.metrics.ObserveInference("series", time.Since(start))
		if d.Leak {
			method := "model"
			if d.RuleBased {
				method = "rules"
			}
			e.metrics.IncLeaks(e.cfg.InstallationID, method)
		}
	}
	if d.Leak {
		e.publisher.LeakDetected(d.Average, d)
	}
	return d
}

// Explanation is a probability with its attribution and description.
type Explanation struct {
	Probability float64           `json:"probability"`
	Importance  models.Importance `json:"importance"`
	Description string            `json:"description"`
	Trend       models.Trend      `json:"trend,omitempty"`
}

func (e *Engine) explanation(p float64, imp models.Importance) Explanation {
	out := Explanation{
		Probability: p,
		Importance:  imp,
		Description: e.explainer.Describe(p, imp),
	}
	if trend, ok := e.explainer.Trend(); ok {
		out.Trend = trend
	}
	return out
}

func (e *Engine) ExplainSingle(ctx context.Context, r models.SensorReading) Explanation {
	p, imp := e.explainer.ExplainSingle(ctx, r)
	return e.explanation(p, imp)
}

func (e *Engine) ExplainSequence(ctx context.Context, readings []models.SensorReading) Explanation {
	p, imp := e.explainer.ExplainSequence(ctx, readings)
	return e.explanation(p, imp)
}

// Forecast projects risk over hours, or the configured horizon when hours
// is not positive.
func (e *Engine) Forecast(ctx context.Context, hours int) models.Forecast {
	if hours <= 0 {
		hours = e.cfg.ForecastHorizon
	}
	start := time.Now()
	f := e.forecaster.Project(ctx, hours)
	if e.metrics != nil {
		e.metrics.ObserveInference("forecast", time.Since(start))
	}
	return f
}

// HoursUntilCritical is the first forecast hour above the critical
// probability, or the horizon when none is.
func (e *Engine) HoursUntilCritical(f models.Forecast) int {
	return f.HoursUntilCritical(e.cfg.CriticalProbability, forecast.FallbackHours)
}

// FuseScored merges ml, the model probability already computed for r, with
// a baseline result computed earlier. r is not ingested again.
func (e *Engine) FuseScored(ctx context.Context, r models.SensorReading, ml float64, res baseline.Result) models.FusionExplanation {
	return e.fuser.FuseScored(ctx, r, ml, res)
}

// RecordFeedback stores a verdict on r with both its raw values and the
// normalized features the models saw.
func (e *Engine) RecordFeedback(r models.SensorReading, correct bool) models.FeedbackRecord {
	rec := e.threshold.RecordFeedback(r, e.normalizer.Normalize(r).Vector(), correct)
	if e.metrics != nil {
		e.metrics.IncFeedback(e.cfg.InstallationID, correct)
	}
	return rec
}

// RestoreFeedback reloads persisted feedback without retuning.
func (e *Engine) RestoreFeedback(records []models.FeedbackRecord) {
	e.threshold.Restore(records)
}

func (e *Engine) Threshold() float64 {
	return e.threshold.Value()
}

func (e *Engine) ThresholdController() *threshold.Controller {
	return e.threshold
}

func (e *Engine) Baseline() *baseline.Baseline {
	return e.baseline
}

func (e *Engine) Registry() *model.Registry {
	return e.registry
}

// SaveBaseline persists the calibrated profile.
func (e *Engine) SaveBaseline(ctx context.Context, store baseline.Store) error {
	return e.baseline.Save(ctx, store)
}

// LoadBaseline restores a persisted profile. A malformed profile leaves the
// baseline calibrating and is reported after being logged.
func (e *Engine) LoadBaseline(ctx context.Context, store baseline.Store) error {
	return e.baseline.Load(ctx, store)
}

// ResetBaseline re-enters calibration and resets the feature ranges.
func (e *Engine) ResetBaseline() {
	e.baseline.Reset()
	e.normalizer.Reset()
	e.log.Info("Baseline reset, calibrating")
}

// Status is a point-in-time summary of the engine.
type Status struct {
	InstallationID string               `json:"installation_id"`
	Threshold      float64              `json:"threshold"`
	Baseline       models.BaselineStats `json:"baseline"`
	Buffered       int                  `json:"buffered"`
	History        []float64            `json:"history"`
	FeedbackCount  int                  `json:"feedback_count"`
	Accuracy       float64              `json:"accuracy"`
	Models         []model.Status       `json:"models"`
}

func (e *Engine) Status() Status {
	ratio, count := e.threshold.Accuracy()
	return Status{
		InstallationID: e.cfg.InstallationID,
		Threshold:      e.threshold.Value(),
		Baseline:       e.baseline.Stats(),
		Buffered:       e.sequence.Len(),
		History:        e.history.Snapshot(),
		FeedbackCount:  count,
		Accuracy:       ratio,
		Models:         e.registry.Status(),
	}
}

// Buffered returns the sequence buffer contents, oldest first.
func (e *Engine) Buffered() []models.SensorReading {
	return e.sequence.Snapshot()
}
