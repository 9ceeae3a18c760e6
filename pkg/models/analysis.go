package models

import "time"

type Trend string

const (
	TrendWorseningFast Trend = "worsening_fast"
	TrendRising        Trend = "rising"
	TrendStable        Trend = "stable"
	TrendFalling       Trend = "falling"
	TrendImprovingFast Trend = "improving_fast"
)

// ClassifyTrend buckets the difference between recent and earlier averages.
func ClassifyTrend(delta float64) Trend {
	switch {
	case delta > 0.1:
		return TrendWorseningFast
	case delta > 0.05:
		return TrendRising
	case delta < -0.1:
		return TrendImprovingFast
	case delta < -0.05:
		return TrendFalling
	default:
		return TrendStable
	}
}

type RiskLevel string

const (
	RiskNormal   RiskLevel = "normal"
	RiskMonitor  RiskLevel = "monitor"
	RiskPossible RiskLevel = "possible_leak"
	RiskHigh     RiskLevel = "high"
)

// ClassifyRisk maps a probability to a severity tier given the current
// detection threshold.
func ClassifyRisk(probability, threshold float64) RiskLevel {
	switch {
	case probability > 0.8:
		return RiskHigh
	case probability > threshold:
		return RiskPossible
	case probability > 0.4:
		return RiskMonitor
	default:
		return RiskNormal
	}
}

// FusionExplanation is the typed explanation bundle produced when model and
// baseline evidence are merged.
type FusionExplanation struct {
	Probability         float64    `json:"probability"`
	AIProbability       float64    `json:"ai_probability"`
	BaselineProbability float64    `json:"baseline_probability"`
	FeatureImportance   Importance `json:"feature_importance"`
	ZScores             ZScores    `json:"z_scores"`
	BaselineText        string     `json:"baseline_text"`
	IsContextualAnomaly bool       `json:"is_contextual_anomaly"`
	Confidence          float64    `json:"confidence"`
}

// Assessment is the outcome of running one reading through the full
// detection pipeline.
type Assessment struct {
	Reading       SensorReading     `json:"reading"`
	Timestamp     time.Time         `json:"timestamp"`
	BaselineScore float64           `json:"baseline_score"`
	Calibrated    bool              `json:"calibrated"`
	Probability   float64           `json:"probability"`
	Risk          RiskLevel         `json:"risk"`
	Threshold     float64           `json:"threshold"`
	Explanation   FusionExplanation `json:"explanation"`
	Description   string            `json:"description"`
}

func (a *Assessment) IsLeak() bool {
	return a.Probability > a.Threshold
}
