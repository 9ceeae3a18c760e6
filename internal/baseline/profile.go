package baseline

import (
	"time"

	"github.com/OldStager01/leakwatch/internal/stats"
	"github.com/OldStager01/leakwatch/pkg/models"
)

// ChannelStats is the expected value and spread of one channel.
type ChannelStats struct {
	Mean   float64
	StdDev float64
}

func (c ChannelStats) ZScore(v float64) float64 {
	return stats.ZScore(v, c.Mean, c.StdDev)
}

func (c ChannelStats) summary() models.ChannelSummary {
	return models.ChannelSummary{Mean: c.Mean, StdDev: c.StdDev}
}

// HourlyPattern is the behaviour observed during one hour of the day.
type HourlyPattern struct {
	Flow        ChannelStats
	Pressure    ChannelStats
	Vibration   ChannelStats
	SampleCount int
}

// Profile is the learned behaviour of one installation. A Profile is never
// mutated after it is built; recalibration produces a new one.
type Profile struct {
	Flow                    ChannelStats
	Pressure                ChannelStats
	Vibration               ChannelStats
	FlowPressureCorrelation float64
	Hourly                  map[int]HourlyPattern
	LastUpdated             time.Time
}

// expectation picks the statistics to score against for the given hour,
// preferring a significant hourly pattern over the global profile.
func (p *Profile) expectation(hour, floor int) (flow, pressure, vibration ChannelStats, pattern *HourlyPattern) {
	if hp, ok := p.Hourly[hour]; ok && hp.SampleCount > floor {
		return hp.Flow, hp.Pressure, hp.Vibration, &hp
	}
	return p.Flow, p.Pressure, p.Vibration, nil
}

func (p *Profile) zScores(r models.SensorReading, hour, floor int) (models.ZScores, *HourlyPattern) {
	flow, pressure, vibration, pattern := p.expectation(hour, floor)
	return models.ZScores{
		Flow:      flow.ZScore(r.Flow),
		Pressure:  pressure.ZScore(r.Pressure),
		Vibration: vibration.ZScore(r.Vibration),
	}, pattern
}

type channelSeries struct {
	flow, pressure, vibration []float64
}

func splitChannels(samples []models.SensorReading) channelSeries {
	s := channelSeries{
		flow:      make([]float64, len(samples)),
		pressure:  make([]float64, len(samples)),
		vibration: make([]float64, len(samples)),
	}
	for i, r := range samples {
		s.flow[i] = r.Flow
		s.pressure[i] = r.Pressure
		s.vibration[i] = r.Vibration
	}
	return s
}

func summarize(xs []float64) ChannelStats {
	mean, sd := stats.MeanStdDev(xs)
	return ChannelStats{Mean: mean, StdDev: sd}
}

// buildProfile recomputes the profile from the calibration window.
func buildProfile(samples []models.SensorReading, loc *time.Location, hourlyMin int, now time.Time) *Profile {
	all := splitChannels(samples)

	byHour := make(map[int][]models.SensorReading)
	for _, r := range samples {
		h := r.Timestamp.In(loc).Hour()
		byHour[h] = append(byHour[h], r)
	}

	hourly := make(map[int]HourlyPattern)
	for hour, group := range byHour {
		if len(group) < hourlyMin {
			continue
		}
		s := splitChannels(group)
		hourly[hour] = HourlyPattern{
			Flow:        summarize(s.flow),
			Pressure:    summarize(s.pressure),
			Vibration:   summarize(s.vibration),
			SampleCount: len(group),
		}
	}

	return &Profile{
		Flow:                    summarize(all.flow),
		Pressure:                summarize(all.pressure),
		Vibration:               summarize(all.vibration),
		FlowPressureCorrelation: stats.Pearson(all.flow, all.pressure),
		Hourly:                  hourly,
		LastUpdated:             now,
	}
}
