package normalizer

import (
	"math"
	"sync"

	"github.com/OldStager01/leakwatch/internal/stats"
	"github.com/OldStager01/leakwatch/pkg/models"
)

// FeatureStats accumulates the observed range of one channel.
type FeatureStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

func (s FeatureStats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

func (s *FeatureStats) observe(v float64) {
	s.Min = math.Min(s.Min, v)
	s.Max = math.Max(s.Max, v)
	s.Sum += v
	s.Count++
}

func (s FeatureStats) scale(v float64) float64 {
	if s.Max <= s.Min {
		return 0.5
	}
	return stats.Clamp01((v - s.Min) / (s.Max - s.Min))
}

// SeedStats returns the cold start bounds for a channel.
func SeedStats(ch models.Channel) FeatureStats {
	switch ch {
	case models.ChannelFlow:
		return FeatureStats{Min: 0, Max: models.MaxFlow}
	case models.ChannelPressure:
		return FeatureStats{Min: 0, Max: models.MaxPressure}
	case models.ChannelVibration:
		return FeatureStats{Min: 0, Max: models.MaxVibration}
	default:
		return FeatureStats{}
	}
}

// Normalizer maps raw channel values into [0,1] using the range observed so
// far. It is safe for concurrent use; Update is the only mutating call on
// the ingestion path.
type Normalizer struct {
	mu    sync.RWMutex
	stats map[models.Channel]*FeatureStats
}

func New() *Normalizer {
	n := &Normalizer{}
	n.reset()
	return n
}

func (n *Normalizer) reset() {
	n.stats = make(map[models.Channel]*FeatureStats, len(models.Channels))
	for _, ch := range models.Channels {
		s := SeedStats(ch)
		n.stats[ch] = &s
	}
}

func (n *Normalizer) Normalize(r models.SensorReading) models.NormalizedReading {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return models.NormalizedReading{
		Flow:      n.stats[models.ChannelFlow].scale(r.Flow),
		Pressure:  n.stats[models.ChannelPressure].scale(r.Pressure),
		Vibration: n.stats[models.ChannelVibration].scale(r.Vibration),
	}
}

func (n *Normalizer) NormalizeValue(ch models.Channel, v float64) float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()

	s, ok := n.stats[ch]
	if !ok {
		return 0.5
	}
	return s.scale(v)
}

// NormalizeAll normalizes a window against a single snapshot of the stats.
func (n *Normalizer) NormalizeAll(readings []models.SensorReading) []models.NormalizedReading {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]models.NormalizedReading, len(readings))
	for i, r := range readings {
		out[i] = models.NormalizedReading{
			Flow:      n.stats[models.ChannelFlow].scale(r.Flow),
			Pressure:  n.stats[models.ChannelPressure].scale(r.Pressure),
			Vibration: n.stats[models.ChannelVibration].scale(r.Vibration),
		}
	}
	return out
}

func (n *Normalizer) Update(r models.SensorReading) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range models.Channels {
		n.stats[ch].observe(r.Value(ch))
	}
}

// Stats returns a copy of the per-channel accumulators.
func (n *Normalizer) Stats() map[models.Channel]FeatureStats {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make(map[models.Channel]FeatureStats, len(n.stats))
	for ch, s := range n.stats {
		out[ch] = *s
	}
	return out
}

// Reset restores the seed bounds. Used when the baseline is recalibrated.
func (n *Normalizer) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset()
}
