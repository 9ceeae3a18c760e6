// Package explain attributes leak probabilities to sensor channels and
// renders them as text.
package explain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/OldStager01/leakwatch/internal/model"
	"github.com/OldStager01/leakwatch/internal/normalizer"
	"github.com/OldStager01/leakwatch/internal/stats"
	"github.com/OldStager01/leakwatch/pkg/models"
)

const (
	perturbation     = 0.05
	minDeltaSum      = 1e-4
	varianceShare    = 0.7
	correlationShare = 0.3
	correlationFloor = -0.3
	trendWindow      = 3
	trendMinHistory  = 5
)

// Scorer is the part of the scoring engine the explainer drives.
type Scorer interface {
	Predict(ctx context.Context, r models.SensorReading) float64
	PredictSequence(ctx context.Context, readings []models.SensorReading) float64
	PointScore(ctx context.Context, x model.Features) (float64, error)
	History() []float64
}

// ThresholdFunc returns the current detection threshold.
type ThresholdFunc func() float64

type Engine struct {
	scorer     Scorer
	normalizer *normalizer.Normalizer
	threshold  ThresholdFunc

	mu   sync.RWMutex
	last models.Importance
}

func New(scorer Scorer, norm *normalizer.Normalizer, threshold ThresholdFunc) *Engine {
	return &Engine{
		scorer:     scorer,
		normalizer: norm,
		threshold:  threshold,
		last:       models.DefaultImportance(),
	}
}

// LastImportance returns the most recent single-reading attribution, or the
// default weights when nothing has been explained yet.
func (e *Engine) LastImportance() models.Importance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last.Clone()
}

func (e *Engine) remember(imp models.Importance) {
	e.mu.Lock()
	e.last = imp.Clone()
	e.mu.Unlock()
}

// ExplainSingle predicts r, which ingests it, and attributes the result.
func (e *Engine) ExplainSingle(ctx context.Context, r models.SensorReading) (float64, models.Importance) {
	probability := e.scorer.Predict(ctx, r)
	return probability, e.Attribute(ctx, r)
}

// Attribute splits the point-model output for r across the channels by
// nudging each one upward and measuring the change. It scores r without
// ingesting it. When the model is unavailable the last attribution stands.
func (e *Engine) Attribute(ctx context.Context, r models.SensorReading) models.Importance {
	x := e.normalizer.Normalize(r).Vector()
	base, err := e.scorer.PointScore(ctx, x)
	if err != nil {
		return e.LastImportance()
	}

	factors := [3]models.Factor{models.FactorFlow, models.FactorPressure, models.FactorVibration}
	var deltas [3]float64
	var total float64
	for i := range x {
		nudged := x
		nudged[i] = math.Min(nudged[i]+perturbation, 1)
		p, err := e.scorer.PointScore(ctx, nudged)
		if err != nil {
			return e.LastImportance()
		}
		deltas[i] = math.Abs(p - base)
		total += deltas[i]
	}

	imp := make(models.Importance, len(factors))
	for i, f := range factors {
		if total == 0 {
			imp[f] = 1.0 / 3
			continue
		}
		imp[f] = deltas[i] / math.Max(total, minDeltaSum)
	}
	imp = imp.Normalized()

	e.remember(imp)
	return imp
}

// ExplainSequence predicts the window and attributes it by per-channel
// variance share, with a separate correlation factor when flow and
// pressure move against each other.
func (e *Engine) ExplainSequence(ctx context.Context, readings []models.SensorReading) (float64, models.Importance) {
	probability := e.scorer.PredictSequence(ctx, readings)
	return probability, SequenceImportance(readings)
}

// SequenceImportance is the variance-share attribution of a window.
func SequenceImportance(readings []models.SensorReading) models.Importance {
	n := len(readings)
	flow := make([]float64, n)
	pressure := make([]float64, n)
	vibration := make([]float64, n)
	for i, r := range readings {
		flow[i], pressure[i], vibration[i] = r.Flow, r.Pressure, r.Vibration
	}

	_, fv := stats.MeanVariance(flow)
	_, pv := stats.MeanVariance(pressure)
	_, vv := stats.MeanVariance(vibration)
	total := fv + pv + vv

	imp := models.Importance{
		models.FactorFlow:      0.33,
		models.FactorPressure:  0.33,
		models.FactorVibration: 0.33,
	}
	if total > 0 {
		imp[models.FactorFlow] = fv / total * varianceShare
		imp[models.FactorPressure] = pv / total * varianceShare
		imp[models.FactorVibration] = vv / total * varianceShare
	}

	if r := stats.Pearson(flow, pressure); r < correlationFloor {
		imp[models.FactorCorrelation] = math.Abs(r) * correlationShare
	}
	return imp.Normalized()
}

// Describe renders a probability and its attribution as text, followed by
// the trend of the prediction history.
func (e *Engine) Describe(probability float64, imp models.Importance) string {
	var b strings.Builder

	switch models.ClassifyRisk(probability, e.threshold()) {
	case models.RiskHigh:
		fmt.Fprintf(&b, "Probabilidad alta de fuga (%.0f%%).", probability*100)
	case models.RiskPossible:
		fmt.Fprintf(&b, "Posible fuga detectada (%.0f%%).", probability*100)
	case models.RiskMonitor:
		fmt.Fprintf(&b, "Comportamiento a vigilar (%.0f%%).", probability*100)
	default:
		fmt.Fprintf(&b, "Funcionamiento normal (%.0f%%).", probability*100)
	}

	if ranked := imp.Ranked(); len(ranked) > 0 {
		parts := make([]string, 0, len(ranked))
		for _, fw := range ranked {
			parts = append(parts, fmt.Sprintf("%s %.0f%%", factorLabel(fw.Factor), fw.Weight*100))
		}
		b.WriteString(" Factores: ")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(".")
	}

	if trend, ok := e.Trend(); ok {
		b.WriteString(" ")
		b.WriteString(trendSentence(trend))
	}
	return b.String()
}

// Trend classifies the fused-probability history. ok is false until enough
// predictions have been made.
func (e *Engine) Trend() (models.Trend, bool) {
	delta, ok := stats.TrailingDelta(e.scorer.History(), trendWindow, trendMinHistory)
	if !ok {
		return models.TrendStable, false
	}
	return models.ClassifyTrend(delta), true
}

func factorLabel(f models.Factor) string {
	switch f {
	case models.FactorFlow:
		return "flujo"
	case models.FactorPressure:
		return "presión"
	case models.FactorVibration:
		return "vibración"
	case models.FactorCorrelation:
		return "correlación flujo/presión"
	default:
		return string(f)
	}
}

func trendSentence(t models.Trend) string {
	switch t {
	case models.TrendWorseningFast:
		return "Tendencia: empeorando rápidamente."
	case models.TrendRising:
		return "Tendencia: riesgo en aumento."
	case models.TrendImprovingFast:
		return "Tendencia: mejorando significativamente."
	case models.TrendFalling:
		return "Tendencia: riesgo en descenso."
	default:
		return "Tendencia: estable."
	}
}
