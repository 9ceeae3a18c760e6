package baseline

import (
	"fmt"
	"math"
	"strings"

	"github.com/OldStager01/leakwatch/internal/stats"
	"github.com/OldStager01/leakwatch/pkg/models"
)

const (
	NormalExplanation  = "Comportamiento normal dentro de los parámetros esperados."
	CriticalPatternMsg = "Patrón crítico: flow alto con presión baja, indicador principal de fuga."
)

// Explain describes why r received the given score.
func (b *Baseline) Explain(r models.SensorReading, score float64) string {
	if score < 0.4 {
		return NormalExplanation
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Anomalía detectada (%d%%):\n", int(score*100))

	var (
		z       models.ZScores
		pattern *HourlyPattern
	)
	if profile := b.Profile(); profile != nil {
		z, pattern = profile.zScores(r, b.hour(r), b.cfg.HourlyMinSamples)
	}

	switch {
	case z.LeakSignature(1.5):
		sb.WriteString("• " + CriticalPatternMsg + "\n")
	case z.Flow > 2:
		fmt.Fprintf(&sb, "• Flujo anormalmente alto: %s.\n", sigmaLabel(z.Flow))
	case z.Pressure < -2:
		fmt.Fprintf(&sb, "• Presión anormalmente baja: %s.\n", sigmaLabel(z.Pressure))
	}

	if z.Vibration > 2 {
		fmt.Fprintf(&sb, "• Vibración anormal detectada: %s.\n", sigmaLabel(z.Vibration))
	}

	if pattern != nil {
		kind := "comportamiento inusual"
		if score > 0.7 {
			kind = "comportamiento muy inusual"
		}
		fmt.Fprintf(&sb, "• En contexto: Este es un %s para esta hora (%s).\n",
			kind, r.Timestamp.In(b.cfg.Location).Format("15:04"))
	}

	if delta, ok := stats.TrailingDelta(b.scores.Snapshot(), 3, 5); ok {
		switch {
		case delta > 0.1:
			sb.WriteString("• Tendencia: La situación está empeorando con el tiempo.\n")
		case delta < -0.1:
			sb.WriteString("• Tendencia: La situación parece estar mejorando.\n")
		}
	}

	return sb.String()
}

func sigmaLabel(z float64) string {
	abs := math.Abs(z)
	switch {
	case abs > 3:
		return fmt.Sprintf("extremo (%.1fσ)", abs)
	case abs > 2:
		return fmt.Sprintf("muy significativo (%.1fσ)", abs)
	default:
		return fmt.Sprintf("significativo (%.1fσ)", abs)
	}
}
