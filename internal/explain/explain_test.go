package explain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/OldStager01/leakwatch/internal/explain"
	"github.com/OldStager01/leakwatch/internal/model"
	"github.com/OldStager01/leakwatch/internal/normalizer"
	"github.com/OldStager01/leakwatch/pkg/models"
)

type stubScorer struct {
	point    func(x model.Features) (float64, error)
	p        float64
	history  []float64
	predicts int
}

func (s *stubScorer) Predict(context.Context, models.SensorReading) float64 {
	s.predicts++
	return s.p
}

func (s *stubScorer) PredictSequence(context.Context, []models.SensorReading) float64 { return s.p }

func (s *stubScorer) PointScore(_ context.Context, x model.Features) (float64, error) {
	return s.point(x)
}

func (s *stubScorer) History() []float64 { return s.history }

func fixedThreshold() float64 { return 0.65 }

func newTestExplainer(s *stubScorer) *explain.Engine {
	return explain.New(s, normalizer.New(), fixedThreshold)
}

func TestExplainSingle_Sensitivity(t *testing.T) {
	s := &stubScorer{
		p: 0.7,
		point: func(x model.Features) (float64, error) {
			return 0.6*x[0] + 0.4*(1-x[1]), nil
		},
	}
	e := newTestExplainer(s)

	p, imp := e.ExplainSingle(context.Background(), models.SensorReading{Flow: 5, Pressure: 100, Vibration: 1})

	assert.Equal(t, 0.7, p)
	assert.InDelta(t, 0.6, imp[models.FactorFlow], 1e-9)
	assert.InDelta(t, 0.4, imp[models.FactorPressure], 1e-9)
	assert.InDelta(t, 0.0, imp[models.FactorVibration], 1e-9)
	assert.InDelta(t, 1.0, imp.Sum(), 1e-9)
	assert.Equal(t, imp, e.LastImportance())
}

func TestExplainSingle_FlatModelGivesEqualShares(t *testing.T) {
	s := &stubScorer{point: func(model.Features) (float64, error) { return 0.2, nil }}
	e := newTestExplainer(s)

	_, imp := e.ExplainSingle(context.Background(), models.SensorReading{Flow: 2, Pressure: 80, Vibration: 0.1})

	for _, f := range []models.Factor{models.FactorFlow, models.FactorPressure, models.FactorVibration} {
		assert.InDelta(t, 1.0/3, imp[f], 1e-9)
	}
	assert.InDelta(t, 1.0, imp.Sum(), 1e-9)
}

func TestAttribute_DoesNotPredict(t *testing.T) {
	s := &stubScorer{point: func(x model.Features) (float64, error) { return x[0], nil }}
	e := newTestExplainer(s)

	imp := e.Attribute(context.Background(), models.SensorReading{Flow: 5, Pressure: 80, Vibration: 0.1})

	assert.Equal(t, 0, s.predicts)
	assert.InDelta(t, 1.0, imp[models.FactorFlow], 1e-9)
	assert.Equal(t, imp, e.LastImportance())

	e.ExplainSingle(context.Background(), models.SensorReading{Flow: 5, Pressure: 80, Vibration: 0.1})
	assert.Equal(t, 1, s.predicts)
}

func TestExplainSingle_ModelUnavailableKeepsLast(t *testing.T) {
	s := &stubScorer{point: func(model.Features) (float64, error) { return 0, model.ErrUnavailable }}
	e := newTestExplainer(s)

	p, imp := e.ExplainSingle(context.Background(), models.SensorReading{Flow: 2, Pressure: 80})

	assert.Equal(t, 0.0, p)
	assert.Equal(t, models.DefaultImportance(), imp)
}

func TestExplainSingle_ValueAtUpperBound(t *testing.T) {
	s := &stubScorer{point: func(x model.Features) (float64, error) {
		if x[0] > 1 {
			return 0, errors.New("out of range")
		}
		return x[0], nil
	}}
	e := newTestExplainer(s)

	_, imp := e.ExplainSingle(context.Background(), models.SensorReading{Flow: 10, Pressure: 80})

	assert.InDelta(t, 1.0, imp.Sum(), 1e-9, "perturbation is capped at 1")
}

func series(values ...[3]float64) []models.SensorReading {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	out := make([]models.SensorReading, len(values))
	for i, v := range values {
		out[i] = models.NewSensorReading(start.Add(time.Duration(i)*time.Minute), v[0], v[1], v[2])
	}
	return out
}

func TestSequenceImportance(t *testing.T) {
	tests := []struct {
		name        string
		readings    []models.SensorReading
		correlation bool
	}{
		{
			name:     "constant window",
			readings: series([3]float64{2, 80, 0.1}, [3]float64{2, 80, 0.1}, [3]float64{2, 80, 0.1}),
		},
		{
			name:        "flow up pressure down",
			readings:    series([3]float64{2, 80, 0.1}, [3]float64{4, 70, 0.2}, [3]float64{6, 60, 0.1}),
			correlation: true,
		},
		{
			name:     "moving together",
			readings: series([3]float64{2, 60, 0.1}, [3]float64{4, 70, 0.1}, [3]float64{6, 80, 0.1}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := explain.SequenceImportance(tt.readings)

			assert.InDelta(t, 1.0, imp.Sum(), 1e-9)
			_, has := imp[models.FactorCorrelation]
			assert.Equal(t, tt.correlation, has)
		})
	}
}

func TestSequenceImportance_EqualSharesWithoutVariance(t *testing.T) {
	imp := explain.SequenceImportance(series([3]float64{2, 80, 0.1}, [3]float64{2, 80, 0.1}))

	assert.InDelta(t, imp[models.FactorFlow], imp[models.FactorPressure], 1e-12)
	assert.InDelta(t, imp[models.FactorFlow], imp[models.FactorVibration], 1e-12)
}

func TestExplainSequence(t *testing.T) {
	s := &stubScorer{p: 0.42}
	e := newTestExplainer(s)

	p, imp := e.ExplainSequence(context.Background(), series([3]float64{2, 80, 0.1}, [3]float64{6, 50, 0.4}, [3]float64{3, 75, 0.1}))

	assert.Equal(t, 0.42, p)
	assert.InDelta(t, 1.0, imp.Sum(), 1e-9)
}

func TestDescribe(t *testing.T) {
	imp := models.Importance{models.FactorFlow: 0.5, models.FactorPressure: 0.3, models.FactorVibration: 0.2}

	tests := []struct {
		name        string
		probability float64
		history     []float64
		contains    []string
		excludes    []string
	}{
		{
			name:        "high",
			probability: 0.9,
			contains:    []string{"Probabilidad alta de fuga (90%)", "flujo 50%, presión 30%, vibración 20%"},
			excludes:    []string{"Tendencia"},
		},
		{
			name:        "possible",
			probability: 0.7,
			history:     []float64{0.1, 0.1, 0.1, 0.5, 0.5, 0.5},
			contains:    []string{"Posible fuga", "empeorando rápidamente"},
		},
		{
			name:        "monitor",
			probability: 0.5,
			history:     []float64{0.5, 0.5, 0.5, 0.3, 0.3, 0.3},
			contains:    []string{"vigilar", "mejorando significativamente"},
		},
		{
			name:        "normal",
			probability: 0.1,
			history:     []float64{0.1, 0.1, 0.1, 0.1, 0.1},
			contains:    []string{"Funcionamiento normal", "estable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExplainer(&stubScorer{history: tt.history})

			text := e.Describe(tt.probability, imp)

			for _, s := range tt.contains {
				assert.Contains(t, text, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, text, s)
			}
		})
	}
}
