package models

import "time"

// WireReading is the JSON shape of a reading on the device backend.
type WireReading struct {
	Timestamp string  `json:"timestamp"`
	Flujo     float64 `json:"flujo"`
	Presion   float64 `json:"presion"`
	Vibracion float64 `json:"vibracion"`
}

var wireTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseWireTimestamp accepts RFC 3339 and the naive layouts the device
// backend emits.
func ParseWireTimestamp(s string) (time.Time, bool) {
	for _, layout := range wireTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Reading converts w, using now when the timestamp is missing or
// unparsable.
func (w WireReading) Reading(now time.Time) SensorReading {
	ts, ok := ParseWireTimestamp(w.Timestamp)
	if !ok {
		ts = now
	}
	return NewSensorReading(ts, w.Flujo, w.Presion, w.Vibracion)
}

// ToWire converts a reading to its wire form.
func ToWire(r SensorReading) WireReading {
	return WireReading{
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
		Flujo:     r.Flow,
		Presion:   r.Pressure,
		Vibracion: r.Vibration,
	}
}

// WireAlert is the alert record exchanged with the backend.
type WireAlert struct {
	Timestamp string         `json:"timestamp"`
	Nivel     string         `json:"nivel"`
	Mensaje   string         `json:"mensaje"`
	Metadatos map[string]any `json:"metadatos,omitempty"`
	Revisada  bool           `json:"revisada,omitempty"`
	Eliminada bool           `json:"eliminada,omitempty"`
}

// ToWireAlert flattens an alert for delivery.
func ToWireAlert(a *Alert) WireAlert {
	return WireAlert{
		Timestamp: a.Timestamp.UTC().Format(time.RFC3339),
		Nivel:     string(a.Level),
		Mensaje:   a.Message,
		Metadatos: map[string]any{
			"id":                  a.ID,
			"instalacion":         a.InstallationID,
			"probabilidad":        a.Metadata.ForecastProbability,
			"confianza":           a.Metadata.Confidence,
			"factor_principal":    string(a.Metadata.PrimaryFactor),
			"horas_hasta_critico": a.Metadata.HoursUntilCritical,
			"puntuacion_baseline": a.Metadata.BaselineScore,
			"anomalia_contextual": a.Metadata.ContextualAnomaly,
		},
		Revisada:  a.Status == AlertStatusReviewed,
		Eliminada: a.Status == AlertStatusDeleted,
	}
}
