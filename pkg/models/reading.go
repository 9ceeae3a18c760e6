package models

import "time"

// Channel identifies one of the three sensor signals.
type Channel string

const (
	ChannelFlow      Channel = "flow"
	ChannelPressure  Channel = "pressure"
	ChannelVibration Channel = "vibration"
)

// Channels lists the sensor channels in feature-vector order.
var Channels = []Channel{ChannelFlow, ChannelPressure, ChannelVibration}

// Valid physical ranges accepted from upstream sources.
const (
	MaxFlow      = 10.0
	MaxPressure  = 200.0
	MaxVibration = 2.0
)

// SensorReading is a single telemetry sample from an installation.
type SensorReading struct {
	Timestamp time.Time `json:"timestamp"`
	Flow      float64   `json:"flow"`
	Pressure  float64   `json:"pressure"`
	Vibration float64   `json:"vibration"`
}

func NewSensorReading(ts time.Time, flow, pressure, vibration float64) SensorReading {
	return SensorReading{
		Timestamp: ts,
		Flow:      flow,
		Pressure:  pressure,
		Vibration: vibration,
	}
}

// Value returns the raw value of the given channel.
func (r SensorReading) Value(ch Channel) float64 {
	switch ch {
	case ChannelFlow:
		return r.Flow
	case ChannelPressure:
		return r.Pressure
	case ChannelVibration:
		return r.Vibration
	default:
		return 0
	}
}

// InRange reports whether every channel lies inside the physical range
// the sensors can produce.
func (r SensorReading) InRange() bool {
	return r.Flow >= 0 && r.Flow <= MaxFlow &&
		r.Pressure >= 0 && r.Pressure <= MaxPressure &&
		r.Vibration >= 0 && r.Vibration <= MaxVibration
}

// NormalizedReading holds channel values mapped to [0,1].
type NormalizedReading struct {
	Flow      float64 `json:"flow"`
	Pressure  float64 `json:"pressure"`
	Vibration float64 `json:"vibration"`
}

// Vector returns the features in model input order.
func (n NormalizedReading) Vector() [3]float64 {
	return [3]float64{n.Flow, n.Pressure, n.Vibration}
}

// ZScores holds per-channel deviations from the installation baseline.
type ZScores struct {
	Flow      float64 `json:"flow"`
	Pressure  float64 `json:"pressure"`
	Vibration float64 `json:"vibration"`
}

// LeakSignature reports the rising-flow / falling-pressure pattern at the
// given sigma level.
func (z ZScores) LeakSignature(sigma float64) bool {
	return z.Flow > sigma && z.Pressure < -sigma
}
