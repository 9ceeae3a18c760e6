package models

import "time"

// HourlyPrediction is one point of a forward risk projection.
type HourlyPrediction struct {
	HourOffset  int        `json:"hour_offset"`
	Timestamp   time.Time  `json:"timestamp"`
	Probability float64    `json:"probability"`
	Confidence  float64    `json:"confidence"`
	RiskFactors Importance `json:"risk_factors,omitempty"`
}

// Forecast is the result of projecting leak risk over a horizon. An empty
// Hours slice means no projection was possible.
type Forecast struct {
	Average float64            `json:"average"`
	Hours   []HourlyPrediction `json:"hours"`
}

func (f Forecast) Empty() bool {
	return len(f.Hours) == 0
}

// HoursUntilCritical returns the first hour offset whose probability exceeds
// critical, or fallback when none does.
func (f Forecast) HoursUntilCritical(critical float64, fallback int) int {
	best := 0
	for _, h := range f.Hours {
		if h.Probability > critical && (best == 0 || h.HourOffset < best) {
			best = h.HourOffset
		}
	}
	if best == 0 {
		return fallback
	}
	return best
}
