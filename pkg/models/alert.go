package models

import (
	"errors"
	"fmt"
	"time"
)

var ErrAlertNotFound = errors.New("alert not found")

type AlertLevel string

const (
	AlertImmediate AlertLevel = "immediate"
	AlertCritical  AlertLevel = "critical"
	AlertUrgent    AlertLevel = "urgent"
)

// AlertLevelFor picks the alert level from the projected hours until the
// leak probability turns critical.
func AlertLevelFor(hoursUntilCritical int) AlertLevel {
	switch {
	case hoursUntilCritical < 6:
		return AlertImmediate
	case hoursUntilCritical < 12:
		return AlertCritical
	default:
		return AlertUrgent
	}
}

type AlertStatus string

const (
	AlertStatusNew      AlertStatus = "nueva"
	AlertStatusReviewed AlertStatus = "revisada"
	AlertStatusDeleted  AlertStatus = "eliminada"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusNew, AlertStatusReviewed, AlertStatusDeleted:
		return true
	}
	return false
}

// AlertMetadata carries the evidence behind an alert.
type AlertMetadata struct {
	ForecastProbability float64 `json:"forecast_probability"`
	Confidence          float64 `json:"confidence"`
	PrimaryFactor       Factor  `json:"primary_factor"`
	HoursUntilCritical  int     `json:"hours_until_critical"`
	BaselineScore       float64 `json:"baseline_score"`
	ContextualAnomaly   bool    `json:"contextual_anomaly"`
}

type Alert struct {
	ID             string        `json:"id"`
	InstallationID string        `json:"installation_id"`
	Timestamp      time.Time     `json:"timestamp"`
	Level          AlertLevel    `json:"level"`
	Status         AlertStatus   `json:"status"`
	Message        string        `json:"message"`
	Metadata       AlertMetadata `json:"metadata"`
}

func NewAlert(installationID string, level AlertLevel, message string, meta AlertMetadata) *Alert {
	return &Alert{
		ID:             NewUUID(),
		InstallationID: installationID,
		Timestamp:      time.Now(),
		Level:          level,
		Status:         AlertStatusNew,
		Message:        message,
		Metadata:       meta,
	}
}

// Title is the short headline used in notifications.
func (a *Alert) Title() string {
	switch a.Level {
	case AlertImmediate:
		return "Fuga inminente detectada"
	case AlertCritical:
		return fmt.Sprintf("Riesgo crítico de fuga en %dh", a.Metadata.HoursUntilCritical)
	default:
		return "Posible fuga detectada"
	}
}
