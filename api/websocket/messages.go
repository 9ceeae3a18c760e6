package websocket

import (
	"encoding/json"
	"time"

	"github.com/OldStager01/leakwatch/pkg/models"
)

type MessageType string

const (
	MessageTypeAlert        MessageType = "alert"
	MessageTypeLeak         MessageType = "leak"
	MessageTypeCalibrated   MessageType = "baseline_calibrated"
	MessageTypeThreshold    MessageType = "threshold"
	MessageTypeModel        MessageType = "model_reloaded"
	MessageTypeError        MessageType = "error"
	MessageTypeSubscription MessageType = "subscription_update"
)

// OutgoingMessage is the frame sent to dashboard clients.
type OutgoingMessage struct {
	Type           MessageType `json:"type"`
	InstallationID string      `json:"installation_id,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
	Severity       string      `json:"severity,omitempty"`
	Message        string      `json:"message,omitempty"`
	Data           interface{} `json:"data,omitempty"`
}

func (m *OutgoingMessage) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// streamedEvents are the bus events forwarded to clients. Per-reading
// events stay server side.
var streamedEvents = map[models.EventType]MessageType{
	models.EventTypeAlertRaised:        MessageTypeAlert,
	models.EventTypeLeakDetected:       MessageTypeLeak,
	models.EventTypeBaselineCalibrated: MessageTypeCalibrated,
	models.EventTypeThresholdAdjusted:  MessageTypeThreshold,
	models.EventTypeModelReloaded:      MessageTypeModel,
	models.EventTypeError:              MessageTypeError,
}

// StreamedEventTypes lists the event types a bridge subscribes to.
func StreamedEventTypes() []models.EventType {
	out := make([]models.EventType, 0, len(streamedEvents))
	for _, t := range models.AllEventTypes() {
		if _, ok := streamedEvents[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// FromEvent converts a bus event, or returns nil for events that are not
// streamed. Alerts go out in their wire form.
func FromEvent(event *models.Event) *OutgoingMessage {
	msgType, ok := streamedEvents[event.Type]
	if !ok {
		return nil
	}

	data := event.Data
	if alert, ok := data.(*models.Alert); ok {
		data = models.ToWireAlert(alert)
	}

	return &OutgoingMessage{
		Type:           msgType,
		InstallationID: event.InstallationID,
		Timestamp:      event.Timestamp,
		Severity:       string(event.Severity),
		Message:        event.Message,
		Data:           data,
	}
}
