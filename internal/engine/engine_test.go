package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/leakwatch/internal/baseline"
	"github.com/OldStager01/leakwatch/internal/engine"
	"github.com/OldStager01/leakwatch/internal/events"
	"github.com/OldStager01/leakwatch/internal/metrics"
	"github.com/OldStager01/leakwatch/internal/model"
	"github.com/OldStager01/leakwatch/internal/normalizer"
	"github.com/OldStager01/leakwatch/pkg/models"
)

var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, registry *model.Registry, opts ...engine.Option) (*engine.Engine, *events.EventBus) {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.InstallationID = "inst-test"
	cfg.Baseline.MinSamples = 20
	cfg.Baseline.Location = time.UTC

	bus := events.NewEventBus(100)
	t.Cleanup(bus.Close)

	opts = append([]engine.Option{
		engine.WithClock(func() time.Time { return noon }),
		engine.WithPublisher(events.NewPublisher(bus, cfg.InstallationID)),
		engine.WithMetrics(metrics.New()),
	}, opts...)
	return engine.New(cfg, registry, opts...), bus
}

func normalReading(i int) models.SensorReading {
	jitter := float64(i%5) * 0.1
	return models.NewSensorReading(noon.Add(time.Duration(i)*time.Minute), 2+jitter, 80-jitter*10, 0.1+jitter/10)
}

func calibrate(t *testing.T, e *engine.Engine) {
	t.Helper()
	for i := 0; i < 20; i++ {
		_, err := e.Process(context.Background(), normalReading(i))
		require.NoError(t, err)
	}
	require.True(t, e.Baseline().IsCalibrated())
}

func TestProcess_CalibratesAndPublishes(t *testing.T) {
	var hooked int
	e, bus := newTestEngine(t, nil, engine.WithCalibrationHook(func(*baseline.Profile) { hooked++ }))
	sub := bus.Subscribe(models.EventTypeBaselineCalibrated)

	calibrate(t, e)

	assert.Equal(t, 1, hooked)
	select {
	case ev := <-sub:
		assert.Equal(t, "inst-test", ev.InstallationID)
	case <-time.After(time.Second):
		t.Fatal("no calibration event")
	}
	assert.Equal(t, 10, len(e.Buffered()))
}

func TestProcess_LeakPatternWithoutModels(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	calibrate(t, e)

	a, err := e.Process(context.Background(), models.NewSensorReading(noon.Add(time.Hour), 7, 40, 0.2))
	require.NoError(t, err)

	assert.Equal(t, 1.0, a.BaselineScore)
	assert.True(t, a.Calibrated)
	assert.Contains(t, a.Explanation.BaselineText, "flow alto con presión baja")
	assert.True(t, a.Explanation.IsContextualAnomaly)
	assert.Equal(t, 1.0, a.Explanation.BaselineProbability)
	assert.Equal(t, 0.0, a.Explanation.AIProbability)
	assert.InDelta(t, 0.4, a.Probability, 1e-9)
	assert.Equal(t, 0.65, a.Threshold)
	assert.NotEmpty(t, a.Description)
}

func TestProcess_WithPointModel(t *testing.T) {
	registry := model.NewRegistry()
	registry.Point.Store(model.PointFunc(func(_ context.Context, x model.Features) (float64, error) {
		return x[0], nil
	}), "test")
	e, bus := newTestEngine(t, registry)
	leaks := bus.Subscribe(models.EventTypeLeakDetected)

	a, err := e.Process(context.Background(), models.NewSensorReading(noon, 9.5, 40, 0.2))
	require.NoError(t, err)

	assert.InDelta(t, 0.95, a.Explanation.AIProbability, 1e-9)
	assert.True(t, a.IsLeak())
	assert.Equal(t, models.RiskPossible, a.Risk)
	assert.InDelta(t, 1.0, a.Explanation.FeatureImportance.Sum(), 1e-9)
	assert.Len(t, leaks, 1)
}

func TestProcess_Cancelled(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := e.Process(ctx, normalReading(0))

	assert.Nil(t, a)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, e.Baseline().SampleCount())
}

func TestDetectInSeries_HighFlowLowPressureIsLeak(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	readings := make([]models.SensorReading, 5)
	for i := range readings {
		readings[i] = models.NewSensorReading(noon.Add(time.Duration(i)*time.Minute), 7, 40, 0.2)
	}

	d := e.DetectInSeries(context.Background(), readings)

	assert.True(t, d.Leak)
	assert.True(t, d.RuleBased)
}

func TestDetectInSeries_NormalStream(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	readings := make([]models.SensorReading, 5)
	for i := range readings {
		readings[i] = models.NewSensorReading(noon.Add(time.Duration(i)*time.Minute), 2, 80, 0.1)
	}

	assert.False(t, e.DetectInSeries(context.Background(), readings).Leak)
	assert.Less(t, e.EvaluateBaseline(readings[2]).Score, 0.4)
}

func TestForecast_InsufficientData(t *testing.T) {
	registry := model.NewRegistry()
	registry.Forecast.Store(model.ForecastFunc(func(context.Context, []model.Features) ([]float64, error) {
		return []float64{0.9, 0.9, 0.9}, nil
	}), "test")
	e, _ := newTestEngine(t, registry)

	for i := 0; i < 4; i++ {
		_, err := e.Process(context.Background(), normalReading(i))
		require.NoError(t, err)
	}
	f := e.Forecast(context.Background(), 24)
	assert.Equal(t, 0.0, f.Average)
	assert.Empty(t, f.Hours)

	_, err := e.Process(context.Background(), normalReading(4))
	require.NoError(t, err)
	f = e.Forecast(context.Background(), 0)
	assert.Len(t, f.Hours, 3)
	assert.Equal(t, 1, e.HoursUntilCritical(f))
}

func TestRecordFeedback_LowAccuracyRaisesThreshold(t *testing.T) {
	e, bus := newTestEngine(t, nil)
	sub := bus.Subscribe(models.EventTypeThresholdAdjusted)
	r := models.NewSensorReading(noon, 7, 40, 0.2)

	for i := 0; i < 10; i++ {
		e.RecordFeedback(r, i < 4)
	}

	assert.InDelta(t, 0.70, e.Threshold(), 1e-12)
	select {
	case ev := <-sub:
		change, ok := ev.Data.(models.ThresholdChange)
		require.True(t, ok)
		assert.InDelta(t, 0.65, change.Old, 1e-12)
	case <-time.After(time.Second):
		t.Fatal("no threshold event")
	}

	status := e.Status()
	assert.Equal(t, 10, status.FeedbackCount)
	assert.InDelta(t, 0.4, status.Accuracy, 1e-12)
}

func TestRecordFeedback_StoresNormalizedFeatures(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	r := models.NewSensorReading(noon, 7, 40, 0.2)

	rec := e.RecordFeedback(r, true)

	assert.Equal(t, [3]float64{7, 40, 0.2}, rec.Features)
	assert.Equal(t, normalizer.New().Normalize(r).Vector(), rec.Normalized)
	for _, v := range rec.Normalized {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestBaselinePersistence(t *testing.T) {
	store := baseline.NewFileStore(t.TempDir())

	e, _ := newTestEngine(t, nil)
	assert.ErrorIs(t, e.SaveBaseline(context.Background(), store), baseline.ErrNotCalibrated)
	calibrate(t, e)
	require.NoError(t, e.SaveBaseline(context.Background(), store))

	restored, _ := newTestEngine(t, nil)
	require.NoError(t, restored.LoadBaseline(context.Background(), store))
	assert.True(t, restored.Baseline().IsCalibrated())

	restored.ResetBaseline()
	assert.False(t, restored.Baseline().IsCalibrated())
	assert.Equal(t, 0, restored.Baseline().Progress())
}

func TestExplain(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	single := e.ExplainSingle(context.Background(), normalReading(0))
	assert.Equal(t, models.DefaultImportance(), single.Importance)

	readings := []models.SensorReading{
		models.NewSensorReading(noon, 2, 80, 0.1),
		models.NewSensorReading(noon.Add(time.Minute), 4, 70, 0.1),
		models.NewSensorReading(noon.Add(2*time.Minute), 6, 60, 0.1),
	}
	seq := e.ExplainSequence(context.Background(), readings)
	assert.InDelta(t, 1.0, seq.Importance.Sum(), 1e-9)
	assert.Contains(t, seq.Importance, models.FactorCorrelation)
}
