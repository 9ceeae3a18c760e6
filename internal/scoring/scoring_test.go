package scoring_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/leakwatch/internal/buffer"
	"github.com/OldStager01/leakwatch/internal/model"
	"github.com/OldStager01/leakwatch/internal/normalizer"
	"github.com/OldStager01/leakwatch/internal/pca"
	"github.com/OldStager01/leakwatch/internal/scoring"
	"github.com/OldStager01/leakwatch/pkg/models"
)

type testEngine struct {
	*scoring.Engine
	registry   *model.Registry
	normalizer *normalizer.Normalizer
	buffer     *buffer.SequenceBuffer
	history    *buffer.PredictionHistory
}

func newTestEngine() *testEngine {
	te := &testEngine{
		registry:   model.NewRegistry(),
		normalizer: normalizer.New(),
		buffer:     buffer.NewSequenceBuffer(10),
		history:    buffer.NewPredictionHistory(20),
	}
	te.Engine = scoring.New(te.registry, te.normalizer, te.buffer, te.history)
	return te
}

func constPoint(p float64) model.PointModel {
	return model.PointFunc(func(ctx context.Context, _ model.Features) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return p, nil
	})
}

func constSequence(err float64) model.SequenceModel {
	return model.SequenceFunc(func(context.Context, model.Features) (float64, error) {
		return err, nil
	})
}

type fixedProjector float64

func (f fixedProjector) Project(context.Context, int) models.Forecast {
	return models.Forecast{Average: float64(f)}
}

func series(n int, f, p, v float64) []models.SensorReading {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	out := make([]models.SensorReading, n)
	for i := range out {
		out[i] = models.NewSensorReading(start.Add(time.Duration(i)*time.Minute), f, p, v)
	}
	return out
}

func TestPredict_PointModelUnavailable(t *testing.T) {
	te := newTestEngine()

	p := te.Predict(context.Background(), models.SensorReading{Flow: 7, Pressure: 40})

	assert.Equal(t, 0.0, p)
	assert.Equal(t, 1, te.buffer.Len(), "ingestion continues without a model")
	assert.Equal(t, 1, te.normalizer.Stats()[models.ChannelFlow].Count)
	assert.Empty(t, te.History())
}

func TestPredict_CancelledLeavesStateUntouched(t *testing.T) {
	te := newTestEngine()
	te.registry.Point.Store(constPoint(0.9), "test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0.0, te.Predict(ctx, models.SensorReading{Flow: 7, Pressure: 40}))
	assert.Equal(t, 0, te.buffer.Len())
	assert.Equal(t, 0, te.normalizer.Stats()[models.ChannelFlow].Count)
	assert.Empty(t, te.History())
}

func TestPredict_PointOnly(t *testing.T) {
	te := newTestEngine()
	te.registry.Point.Store(constPoint(0.42), "test")

	for _, r := range series(4, 2, 80, 0.1) {
		assert.Equal(t, 0.42, te.Predict(context.Background(), r))
	}
	assert.Equal(t, []float64{0.42, 0.42, 0.42, 0.42}, te.History())
}

func TestPredict_Ensemble(t *testing.T) {
	te := newTestEngine()
	te.registry.Point.Store(constPoint(0.5), "test")
	te.registry.Sequence.Store(constSequence(0), "test")
	scorer, err := pca.NewScorer(pca.Basis{
		Components: [][]float64{make([]float64, 30)},
		Mean:       make([]float64, 30),
	})
	require.NoError(t, err)
	te.registry.PCA.Store(scorer, "test")

	var got []float64
	for _, r := range series(3, 2, 80, 0.1) {
		got = append(got, te.Predict(context.Background(), r))
	}

	// Below three buffered readings the point score stands alone. At three,
	// sequence error 0 maps to 0.5 and the PCA window of ten is not full.
	assert.Equal(t, 0.5, got[0])
	assert.Equal(t, 0.5, got[1])
	assert.InDelta(t, 0.6*0.5+0.2*0.5, got[2], 1e-12)
}

func TestPredict_Bounded(t *testing.T) {
	tests := []struct {
		name  string
		point float64
		seq   float64
	}{
		{"overflowing point model", 7, 0},
		{"negative point model", -3, 0},
		{"huge reconstruction error", 1, 1e6},
		{"negative reconstruction error", 0, -1e6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine()
			te.registry.Point.Store(constPoint(tt.point), "test")
			te.registry.Sequence.Store(constSequence(tt.seq), "test")
			scorer, err := pca.NewScorer(pca.Basis{
				Components: [][]float64{make([]float64, 9)},
				Mean:       make([]float64, 9),
				Threshold:  0.001,
			})
			require.NoError(t, err)
			te.registry.PCA.Store(scorer, "test")

			for _, r := range series(6, 9, 10, 1.9) {
				p := te.Predict(context.Background(), r)
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
				assert.False(t, math.IsNaN(p))
			}
		})
	}
}

func TestAnalyzeSequence(t *testing.T) {
	tests := []struct {
		name     string
		readings []models.SensorReading
		check    func(t *testing.T, s scoring.SequenceSignals)
	}{
		{
			name:     "too short",
			readings: series(2, 7, 10, 1.5),
			check: func(t *testing.T, s scoring.SequenceSignals) {
				assert.False(t, s.Anomalous())
				assert.False(t, s.HighVibration)
			},
		},
		{
			name:     "steady normal",
			readings: series(5, 2, 80, 0.1),
			check: func(t *testing.T, s scoring.SequenceSignals) {
				assert.False(t, s.Anomalous())
				assert.Equal(t, 0.0, s.Correlation)
			},
		},
		{
			name: "flow up while pressure falls",
			readings: []models.SensorReading{
				{Flow: 2, Pressure: 80, Vibration: 0.1},
				{Flow: 3, Pressure: 70, Vibration: 0.1},
				{Flow: 4, Pressure: 60, Vibration: 0.1},
				{Flow: 5, Pressure: 50, Vibration: 0.1},
			},
			check: func(t *testing.T, s scoring.SequenceSignals) {
				assert.True(t, s.NegativeCorrelation)
				assert.InDelta(t, -1, s.Correlation, 1e-9)
				assert.True(t, s.Anomalous())
			},
		},
		{
			name: "vibration spike alone",
			readings: []models.SensorReading{
				{Flow: 2, Pressure: 80, Vibration: 0.1},
				{Flow: 2, Pressure: 80, Vibration: 1.5},
				{Flow: 2, Pressure: 80, Vibration: 0.1},
			},
			check: func(t *testing.T, s scoring.SequenceSignals) {
				assert.True(t, s.HighVibration)
				assert.False(t, s.Anomalous())
			},
		},
		{
			name: "pressure drop with flow variation",
			readings: []models.SensorReading{
				{Flow: 1, Pressure: 80, Vibration: 0.1},
				{Flow: 5, Pressure: 80, Vibration: 0.1},
				{Flow: 1, Pressure: 40, Vibration: 0.1},
				{Flow: 5, Pressure: 80, Vibration: 0.1},
			},
			check: func(t *testing.T, s scoring.SequenceSignals) {
				assert.True(t, s.SuddenPressureDrop)
				assert.True(t, s.HighFlowVariation)
				assert.True(t, s.Anomalous())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, scoring.AnalyzeSequence(tt.readings))
		})
	}
}

func TestRuleLeak(t *testing.T) {
	tests := []struct {
		name     string
		reading  models.SensorReading
		expected bool
	}{
		{"flow high pressure low", models.SensorReading{Flow: 7, Pressure: 40, Vibration: 0.2}, true},
		{"vibration with low pressure", models.SensorReading{Flow: 2, Pressure: 45, Vibration: 0.9}, true},
		{"vibration very high", models.SensorReading{Flow: 2, Pressure: 80, Vibration: 1.3}, true},
		{"vibration moderate alone", models.SensorReading{Flow: 2, Pressure: 80, Vibration: 0.9}, false},
		{"flow high alone", models.SensorReading{Flow: 7, Pressure: 80, Vibration: 0.2}, false},
		{"normal", models.SensorReading{Flow: 2, Pressure: 80, Vibration: 0.1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, scoring.RuleLeak(tt.reading))
		})
	}
}

func TestRuleLeakInSeries(t *testing.T) {
	leak := models.SensorReading{Flow: 7, Pressure: 40, Vibration: 0.2}
	normal := models.SensorReading{Flow: 2, Pressure: 80, Vibration: 0.1}

	assert.False(t, scoring.RuleLeakInSeries([]models.SensorReading{leak, leak, leak, leak}))
	assert.True(t, scoring.RuleLeakInSeries([]models.SensorReading{normal, leak, normal, leak, leak}))
	assert.False(t, scoring.RuleLeakInSeries([]models.SensorReading{leak, leak, normal, normal, leak, normal}))
}

func TestDetectInSeries_RuleFallbackDetectsLeak(t *testing.T) {
	te := newTestEngine()

	assert.True(t, te.DetectInSeries(context.Background(), series(5, 7, 40, 0.2), 0.65))

	d := te.EvaluateSeries(context.Background(), series(5, 7, 40, 0.2), 0.65)
	assert.True(t, d.RuleBased)
}

func TestDetectInSeries_NormalSeries(t *testing.T) {
	te := newTestEngine()
	assert.False(t, te.DetectInSeries(context.Background(), series(5, 2, 80, 0.1), 0.65))

	te.registry.Point.Store(constPoint(0.1), "test")
	assert.False(t, te.DetectInSeries(context.Background(), series(5, 2, 80, 0.1), 0.65))
}

func TestDetectInSeries_TooShort(t *testing.T) {
	te := newTestEngine()
	te.registry.Point.Store(constPoint(1), "test")

	assert.False(t, te.DetectInSeries(context.Background(), series(2, 7, 40, 0.2), 0.65))
	assert.Equal(t, 0, te.buffer.Len())
}

func TestEvaluateSeries_ModelDecision(t *testing.T) {
	rising := []models.SensorReading{
		{Flow: 2, Pressure: 80, Vibration: 0.1},
		{Flow: 3, Pressure: 70, Vibration: 0.1},
		{Flow: 4, Pressure: 60, Vibration: 0.1},
		{Flow: 5, Pressure: 50, Vibration: 0.1},
		{Flow: 6, Pressure: 40, Vibration: 0.1},
	}

	tests := []struct {
		name      string
		point     float64
		projector scoring.Projector
		readings  []models.SensorReading
		expected  bool
	}{
		{"average above threshold", 0.8, nil, series(5, 2, 80, 0.1), true},
		{"flagged window with forecast risk", 0.3, fixedProjector(0.6), rising, true},
		{"flagged window without risk", 0.3, fixedProjector(0.2), rising, false},
		{"forecast risk without flag", 0.3, fixedProjector(0.9), series(5, 2, 80, 0.1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine()
			te.registry.Point.Store(constPoint(tt.point), "test")
			if tt.projector != nil {
				te.SetProjector(tt.projector)
			}

			d := te.EvaluateSeries(context.Background(), tt.readings, 0.65)

			assert.Equal(t, tt.expected, d.Leak)
			assert.False(t, d.RuleBased)
			assert.Len(t, d.Predictions, 5)
			assert.InDelta(t, 0.0, d.Trend, 1e-12)
		})
	}
}

func TestEvaluateSeries_LearnsOnlyNewReadings(t *testing.T) {
	te := newTestEngine()
	te.registry.Point.Store(constPoint(0.3), "test")
	ctx := context.Background()
	flowCount := func() int { return te.normalizer.Stats()[models.ChannelFlow].Count }

	window := series(12, 2, 80, 0.1)
	te.EvaluateSeries(ctx, window, 0.65)
	assert.Equal(t, 10, te.buffer.Len())
	assert.Equal(t, []float64{0.3, 0.3, 0.3, 0.3, 0.3}, te.History())
	assert.Equal(t, 12, flowCount())

	te.EvaluateSeries(ctx, window, 0.65)
	assert.Len(t, te.History(), 5, "a repeated window adds nothing")
	assert.Equal(t, 12, flowCount())

	// Slide by three minutes: three new readings, all in the scored tail.
	next := series(15, 2, 80, 0.1)[3:]
	te.EvaluateSeries(ctx, next, 0.65)
	assert.Len(t, te.History(), 8)
	assert.Equal(t, 15, flowCount())
}

func TestEvaluateSeries_RuleFallbackStillLearns(t *testing.T) {
	te := newTestEngine()

	te.EvaluateSeries(context.Background(), series(5, 2, 80, 0.1), 0.65)

	assert.Equal(t, 5, te.normalizer.Stats()[models.ChannelFlow].Count)
	assert.Empty(t, te.History())
}

func TestEvaluateSeries_CancelledLearnsNothing(t *testing.T) {
	te := newTestEngine()
	te.registry.Point.Store(constPoint(0.3), "test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	te.EvaluateSeries(ctx, series(5, 2, 80, 0.1), 0.65)
	assert.Equal(t, 0, te.normalizer.Stats()[models.ChannelFlow].Count)
	assert.Empty(t, te.History())

	te.EvaluateSeries(context.Background(), series(5, 2, 80, 0.1), 0.65)
	assert.Len(t, te.History(), 5, "cancelled call did not mark readings as seen")
}

func TestPredictSequence(t *testing.T) {
	te := newTestEngine()
	te.registry.Point.Store(constPoint(0.5), "test")

	rising := []models.SensorReading{
		{Flow: 2, Pressure: 80, Vibration: 0.1},
		{Flow: 3, Pressure: 70, Vibration: 0.1},
		{Flow: 4, Pressure: 60, Vibration: 0.1},
	}

	p := te.PredictSequence(context.Background(), rising)

	assert.InDelta(t, 0.6*0.5+0.2*0.3, p, 1e-12)
	assert.Equal(t, 3, te.buffer.Len())
	assert.Equal(t, []float64{p}, te.History())

	assert.Equal(t, 0.0, te.PredictSequence(context.Background(), nil))
}

func TestDetectReading(t *testing.T) {
	te := newTestEngine()
	assert.True(t, te.DetectReading(context.Background(), models.SensorReading{Flow: 7, Pressure: 40}, 0.65))

	te = newTestEngine()
	te.registry.Point.Store(constPoint(0.2), "test")
	swings := []models.SensorReading{
		{Flow: 1, Pressure: 90},
		{Flow: 5, Pressure: 60},
		{Flow: 1, Pressure: 90},
	}
	var last bool
	for _, r := range swings {
		last = te.DetectReading(context.Background(), r, 0.65)
	}
	assert.True(t, last)
}
