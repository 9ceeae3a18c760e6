package baseline

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/OldStager01/leakwatch/pkg/models"
)

const maxSyntheticPerHour = 20

func normal(c ChannelStats) distuv.Normal {
	return distuv.Normal{Mu: c.Mean, Sigma: c.StdDev}
}

// synthesize regenerates a sample window from a loaded profile so scoring
// resumes without re-accumulating raw history. Each hourly pattern yields
// up to 20 samples stamped at that hour; the window is then padded to
// minSamples from the global distribution.
func synthesize(p *Profile, minSamples int, loc *time.Location, now time.Time) []models.SensorReading {
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	hours := make([]int, 0, len(p.Hourly))
	for h := range p.Hourly {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	samples := make([]models.SensorReading, 0, minSamples)
	for _, h := range hours {
		hp := p.Hourly[h]
		flow, pressure, vibration := normal(hp.Flow), normal(hp.Pressure), normal(hp.Vibration)
		ts := day.Add(time.Duration(h) * time.Hour)
		for i := 0; i < min(hp.SampleCount, maxSyntheticPerHour); i++ {
			samples = append(samples, models.NewSensorReading(
				ts.Add(time.Duration(i)*time.Minute),
				flow.Rand(), pressure.Rand(), vibration.Rand(),
			))
		}
	}

	flow, pressure, vibration := normal(p.Flow), normal(p.Pressure), normal(p.Vibration)
	for i := 0; len(samples) < minSamples; i++ {
		samples = append(samples, models.NewSensorReading(
			now.Add(-time.Duration(i)*time.Minute),
			flow.Rand(), pressure.Rand(), vibration.Rand(),
		))
	}
	return samples
}
