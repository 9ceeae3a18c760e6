package models

import "time"

type EventType string

const (
	EventTypeReadingIngested    EventType = "reading_ingested"
	EventTypeBaselineCalibrated EventType = "baseline_calibrated"
	EventTypeLeakDetected       EventType = "leak_detected"
	EventTypeAlertRaised        EventType = "alert_raised"
	EventTypeThresholdAdjusted  EventType = "threshold_adjusted"
	EventTypeModelReloaded      EventType = "model_reloaded"
	EventTypeError              EventType = "error"
)

// AllEventTypes lists every event type the bus routes.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeReadingIngested,
		EventTypeBaselineCalibrated,
		EventTypeLeakDetected,
		EventTypeAlertRaised,
		EventTypeThresholdAdjusted,
		EventTypeModelReloaded,
		EventTypeError,
	}
}

type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// Event represents an internal system event
type Event struct {
	ID             string        `json:"id"`
	Type           EventType     `json:"type"`
	Severity       EventSeverity `json:"severity"`
	InstallationID string        `json:"installation_id,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	Message        string        `json:"message"`
	Data           interface{}   `json:"data,omitempty"`
	TraceID        string        `json:"trace_id,omitempty"`
}

func NewEvent(eventType EventType, installationID, message string) *Event {
	return &Event{
		ID:             NewUUID(),
		Type:           eventType,
		Severity:       SeverityInfo,
		InstallationID: installationID,
		Timestamp:      time.Now(),
		Message:        message,
	}
}

func (e *Event) WithSeverity(severity EventSeverity) *Event {
	e.Severity = severity
	return e
}

func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}

func (e *Event) WithTraceID(traceID string) *Event {
	e.TraceID = traceID
	return e
}

// ThresholdChange is the payload of a threshold_adjusted event.
type ThresholdChange struct {
	Old           float64 `json:"old"`
	New           float64 `json:"new"`
	FeedbackCount int     `json:"feedback_count"`
	Ratio         float64 `json:"ratio"`
}
