package scoring

import (
	"github.com/OldStager01/leakwatch/internal/baseline"
	"github.com/OldStager01/leakwatch/pkg/models"
)

const (
	ruleWindow  = 5
	ruleMinHits = 3
)

// RuleLeak applies the fixed threshold rules to a single reading.
func RuleLeak(r models.SensorReading) bool {
	flowHigh := r.Flow > baseline.RuleFlowHigh
	pressureLow := r.Pressure < baseline.RulePressureLow
	vibHigh := r.Vibration > baseline.RuleVibrationHigh

	switch {
	case flowHigh && pressureLow:
		return true
	case vibHigh && (flowHigh || pressureLow):
		return true
	default:
		return r.Vibration > vibrationCeiling
	}
}

// RuleLeakInSeries reports a leak when at least three of the last five
// readings match the rules. Shorter series never match.
func RuleLeakInSeries(readings []models.SensorReading) bool {
	if len(readings) < ruleWindow {
		return false
	}
	hits := 0
	for _, r := range readings[len(readings)-ruleWindow:] {
		if RuleLeak(r) {
			hits++
		}
	}
	return hits >= ruleMinHits
}
