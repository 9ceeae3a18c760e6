package buffer

import "github.com/OldStager01/leakwatch/pkg/models"

const (
	DefaultSequenceLength = 10
	DefaultHistoryLength  = 20
)

// SequenceBuffer holds the most recent raw readings shared by the
// sequence scorers and forecast input assembly.
type SequenceBuffer = Ring[models.SensorReading]

// PredictionHistory holds recent fused probabilities for trend reporting.
type PredictionHistory = Ring[float64]

func NewSequenceBuffer(capacity int) *SequenceBuffer {
	if capacity <= 0 {
		capacity = DefaultSequenceLength
	}
	return NewRing[models.SensorReading](capacity)
}

func NewPredictionHistory(capacity int) *PredictionHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryLength
	}
	return NewRing[float64](capacity)
}
