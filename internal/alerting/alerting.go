// Package alerting turns leak detections into alerts and delivers them to
// the installation backend.
package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/OldStager01/leakwatch/pkg/models"
)

// Detection is everything the monitor knows about one detected leak.
type Detection struct {
	InstallationID     string
	Timestamp          time.Time
	Forecast           models.Forecast
	HoursUntilCritical int
	Fusion             models.FusionExplanation
	Importance         models.Importance
	BaselineScore      float64
	ContextualAnomaly  bool
}

// Build creates the alert for a detection. The level follows the hours
// left before the forecast turns critical.
func Build(d Detection) *models.Alert {
	level := models.AlertLevelFor(d.HoursUntilCritical)

	primary := models.FactorFlow
	if top, ok := d.Importance.Top(); ok {
		primary = top.Factor
	}

	meta := models.AlertMetadata{
		ForecastProbability: peak(d.Forecast),
		Confidence:          d.Fusion.Confidence,
		PrimaryFactor:       primary,
		HoursUntilCritical:  d.HoursUntilCritical,
		BaselineScore:       d.BaselineScore,
		ContextualAnomaly:   d.ContextualAnomaly,
	}

	alert := models.NewAlert(d.InstallationID, level, "", meta)
	if !d.Timestamp.IsZero() {
		alert.Timestamp = d.Timestamp
	}
	alert.Message = Message(alert, d.Fusion.Probability)
	return alert
}

func peak(f models.Forecast) float64 {
	var best float64
	for _, h := range f.Hours {
		best = max(best, h.Probability)
	}
	return best
}

var factorNames = map[models.Factor]string{
	models.FactorFlow:        "caudal",
	models.FactorPressure:    "presión",
	models.FactorVibration:   "vibración",
	models.FactorCorrelation: "correlación caudal/presión",
}

// Message renders the alert body shown to the household.
func Message(a *models.Alert, probability float64) string {
	var b strings.Builder

	b.WriteString(a.Title())
	b.WriteString(". ")

	switch a.Level {
	case models.AlertImmediate:
		fmt.Fprintf(&b, "Riesgo crítico previsto en %dh. Revise la instalación de inmediato.", a.Metadata.HoursUntilCritical)
	case models.AlertCritical:
		b.WriteString("Programe una revisión hoy mismo.")
	default:
		b.WriteString("Vigile el consumo durante las próximas horas.")
	}

	fmt.Fprintf(&b, " Probabilidad actual %.0f%%, confianza %.0f%%.", probability*100, a.Metadata.Confidence*100)

	if name, ok := factorNames[a.Metadata.PrimaryFactor]; ok {
		fmt.Fprintf(&b, " Factor principal: %s.", name)
	}
	if a.Metadata.ContextualAnomaly {
		b.WriteString(" El consumo es anómalo respecto al perfil habitual de la vivienda.")
	}
	return b.String()
}
