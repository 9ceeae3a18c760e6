package models

import "time"

// FeedbackRecord is a user verdict on a past detection. Features holds the
// raw flow, pressure and vibration; Normalized holds the model inputs the
// reading mapped to when the verdict was given.
type FeedbackRecord struct {
	ID         string     `json:"id,omitempty"`
	Features   [3]float64 `json:"features"`
	Normalized [3]float64 `json:"normalized"`
	Correct    bool       `json:"correct"`
	RecordedAt time.Time  `json:"recorded_at"`
}

func NewFeedbackRecord(features [3]float64, correct bool) FeedbackRecord {
	return FeedbackRecord{
		ID:         NewUUID(),
		Features:   features,
		Correct:    correct,
		RecordedAt: time.Now(),
	}
}
