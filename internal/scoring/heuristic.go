package scoring

import (
	"github.com/OldStager01/leakwatch/internal/stats"
	"github.com/OldStager01/leakwatch/pkg/models"
)

const (
	pressureDropRatio   = 0.3
	flowVariationRatio  = 0.5
	vibrationCeiling    = 1.2
	negativeCorrelation = -0.5
)

// SequenceSignals are the window-level leak indicators of a reading
// sequence.
type SequenceSignals struct {
	SuddenPressureDrop  bool    `json:"sudden_pressure_drop"`
	HighFlowVariation   bool    `json:"high_flow_variation"`
	HighVibration       bool    `json:"high_vibration"`
	NegativeCorrelation bool    `json:"negative_correlation"`
	Correlation         float64 `json:"correlation"`
}

// Anomalous combines the signals into the sequence anomaly flag.
func (s SequenceSignals) Anomalous() bool {
	return (s.SuddenPressureDrop && s.HighFlowVariation) ||
		(s.HighVibration && (s.SuddenPressureDrop || s.HighFlowVariation)) ||
		s.NegativeCorrelation
}

// AnalyzeSequence computes the signals over raw readings. Windows shorter
// than three readings carry no signal.
func AnalyzeSequence(readings []models.SensorReading) SequenceSignals {
	var s SequenceSignals
	if len(readings) < 3 {
		return s
	}

	flow := make([]float64, len(readings))
	pressure := make([]float64, len(readings))
	for i, r := range readings {
		flow[i] = r.Flow
		pressure[i] = r.Pressure
		if r.Vibration > vibrationCeiling {
			s.HighVibration = true
		}
	}

	flowMean, flowVar := stats.MeanVariance(flow)
	pressureMean := stats.Mean(pressure)

	for i := 0; i+2 < len(readings); i++ {
		if pressure[i]-pressure[i+2] > pressureMean*pressureDropRatio {
			s.SuddenPressureDrop = true
			break
		}
	}

	s.HighFlowVariation = flowVar > flowMean*flowVariationRatio
	s.Correlation = stats.Pearson(flow, pressure)
	s.NegativeCorrelation = s.Correlation < negativeCorrelation
	return s
}
