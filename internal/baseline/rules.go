package baseline

import (
	"math"

	"github.com/OldStager01/leakwatch/internal/stats"
	"github.com/OldStager01/leakwatch/pkg/models"
)

// Raw thresholds used before a profile exists.
const (
	RuleFlowHigh      = 6.0
	RulePressureLow   = 50.0
	RuleVibrationHigh = 0.8
)

// RuleScore is the coarse anomaly score used while calibrating.
func RuleScore(r models.SensorReading) float64 {
	flowHigh := r.Flow > RuleFlowHigh
	pressureLow := r.Pressure < RulePressureLow
	vibHigh := r.Vibration > RuleVibrationHigh

	var score float64
	if flowHigh && pressureLow {
		score += 0.8
	}
	if vibHigh && (flowHigh || pressureLow) {
		score += 0.7
	}
	if flowHigh && !pressureLow && !vibHigh {
		score += 0.4
	}
	if pressureLow && !flowHigh && !vibHigh {
		score += 0.4
	}
	if vibHigh && !flowHigh && !pressureLow {
		score += 0.5
	}
	return stats.Clamp01(score)
}

// Channel weights of the calibrated score.
const (
	weightFlow      = 0.35
	weightPressure  = 0.35
	weightVibration = 0.20
)

// ZScoreAnomaly combines per-channel deviations into a score in [0,1].
// Each term is |z|/3 capped at 1. The rising flow with falling pressure
// signature adds min(max(flowZ, -pressureZ)*0.2, 1) before clamping.
func ZScoreAnomaly(z models.ZScores) float64 {
	term := func(v float64) float64 {
		return math.Min(math.Abs(v)/3, 1)
	}

	score := weightFlow*term(z.Flow) +
		weightPressure*term(z.Pressure) +
		weightVibration*term(z.Vibration)

	if z.LeakSignature(1.0) {
		score += math.Min(math.Max(z.Flow, -z.Pressure)*0.2, 1)
	}
	return stats.Clamp01(score)
}
