package models

import "time"

type BaselinePhase string

const (
	PhaseCalibrating BaselinePhase = "calibrating"
	PhaseCalibrated  BaselinePhase = "calibrated"
)

// ChannelSummary is the mean and standard deviation of one channel.
type ChannelSummary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// BaselineStats is a read-only view of an installation baseline.
type BaselineStats struct {
	Phase               BaselinePhase  `json:"phase"`
	Progress            int            `json:"progress"`
	Flow                ChannelSummary `json:"flow"`
	Pressure            ChannelSummary `json:"pressure"`
	Vibration           ChannelSummary `json:"vibration"`
	FlowPressureCorr    float64        `json:"flow_pressure_correlation"`
	HourlyPatternCount  int            `json:"hourly_pattern_count"`
	SampleCount         int            `json:"sample_count"`
	LastUpdated         *time.Time     `json:"last_updated,omitempty"`
}

func (s BaselineStats) IsCalibrated() bool {
	return s.Phase == PhaseCalibrated
}
