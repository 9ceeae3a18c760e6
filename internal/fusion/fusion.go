// Package fusion merges the model probability with the installation
// baseline's view of the same reading.
package fusion

import (
	"context"
	"math"

	"github.com/OldStager01/leakwatch/internal/baseline"
	"github.com/OldStager01/leakwatch/internal/stats"
	"github.com/OldStager01/leakwatch/pkg/models"
)

const (
	weightFlow      = 0.4
	weightPressure  = 0.4
	weightVibration = 0.2

	lowPressureGain  = 1.2
	highPressureGain = 0.5

	patternSigma = 1.5
	patternBoost = 1.3

	confidentModel = 0.8
	modelWeightHi  = 0.7
	modelWeightLo  = 0.6
	agreementGain  = 0.2
)

// Explainer produces the model probability and its attribution.
type Explainer interface {
	ExplainSingle(ctx context.Context, r models.SensorReading) (float64, models.Importance)
	Attribute(ctx context.Context, r models.SensorReading) models.Importance
}

type Fuser struct {
	explainer Explainer
}

func New(explainer Explainer) *Fuser {
	return &Fuser{explainer: explainer}
}

// Fuse explains r with the model and merges it with the baseline result.
func (f *Fuser) Fuse(ctx context.Context, r models.SensorReading, res baseline.Result) models.FusionExplanation {
	ml, imp := f.explainer.ExplainSingle(ctx, r)
	return Combine(ml, imp, res)
}

// FuseScored merges a model probability already computed for r, so r is
// attributed but not ingested a second time.
func (f *Fuser) FuseScored(ctx context.Context, r models.SensorReading, ml float64, res baseline.Result) models.FusionExplanation {
	return Combine(ml, f.explainer.Attribute(ctx, r), res)
}

// BaselineProbability converts baseline z-scores to a leak probability.
// Low pressure counts more than high pressure.
func BaselineProbability(z models.ZScores) float64 {
	ap := z.Pressure * highPressureGain
	if z.Pressure < 0 {
		ap = math.Abs(z.Pressure) * lowPressureGain
	}
	combined := weightFlow*math.Abs(z.Flow) + weightPressure*ap + weightVibration*math.Abs(z.Vibration)

	p := 1 / (1 + math.Exp(-combined*0.5+1))
	if z.Flow > patternSigma && z.Pressure < -patternSigma {
		p = math.Min(p*patternBoost, 1)
	}
	return p
}

// Combine weighs the model probability against the baseline probability.
// A confident model gets more weight, and agreement raises confidence.
func Combine(ml float64, imp models.Importance, res baseline.Result) models.FusionExplanation {
	ml = stats.Clamp01(ml)
	bp := BaselineProbability(res.ZScores)

	w := modelWeightLo
	if ml > confidentModel {
		w = modelWeightHi
	}

	return models.FusionExplanation{
		Probability:         stats.Clamp01(w*ml + (1-w)*bp),
		AIProbability:       ml,
		BaselineProbability: bp,
		FeatureImportance:   imp.Clone(),
		ZScores:             res.ZScores,
		BaselineText:        res.Explanation,
		IsContextualAnomaly: res.IsAnomaly,
		Confidence:          math.Min(math.Max(ml, bp)+(1-math.Abs(ml-bp))*agreementGain, 1),
	}
}
