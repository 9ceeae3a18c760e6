package simulator

import (
	"math"
	"math/rand"
)

// Sample is one simulated sensor state before noise.
type Sample struct {
	Flow      float64
	Pressure  float64
	Vibration float64
}

// Pattern shapes the base sample at a given step.
type Pattern interface {
	Apply(base Sample, step int, hour int) Sample
	Name() string
}

var (
	PatternNormal   Pattern = &NormalPattern{}
	PatternLeak     Pattern = &LeakPattern{}
	PatternBurst    Pattern = &BurstPattern{}
	PatternSlowLeak Pattern = &SlowLeakPattern{}
)

func ParsePattern(name string) Pattern {
	switch name {
	case "leak":
		return PatternLeak
	case "burst":
		return PatternBurst
	case "slow_leak":
		return &SlowLeakPattern{}
	default:
		return PatternNormal
	}
}

// NormalPattern follows household usage: morning and evening peaks, quiet
// nights.
type NormalPattern struct{}

func (p *NormalPattern) Apply(base Sample, _ int, hour int) Sample {
	var modifier float64
	switch {
	case hour >= 6 && hour <= 9:
		modifier = 1.5
	case hour >= 19 && hour <= 22:
		modifier = 1.3
	case hour >= 0 && hour <= 5:
		modifier = 0.4
	default:
		modifier = 1.0
	}
	base.Flow *= modifier
	// Pressure sags slightly under demand.
	base.Pressure -= (modifier - 1) * 4
	return base
}

func (p *NormalPattern) Name() string {
	return "normal"
}

// LeakPattern is an established leak: sustained high flow with low pressure.
type LeakPattern struct{}

func (p *LeakPattern) Apply(base Sample, _ int, _ int) Sample {
	return Sample{
		Flow:      base.Flow + 5,
		Pressure:  base.Pressure - 40,
		Vibration: base.Vibration + 0.3,
	}
}

func (p *LeakPattern) Name() string {
	return "leak"
}

// BurstPattern is a pipe burst: flow near the sensor ceiling, pressure
// collapsed, strong vibration.
type BurstPattern struct{}

func (p *BurstPattern) Apply(base Sample, _ int, _ int) Sample {
	return Sample{
		Flow:      9,
		Pressure:  20,
		Vibration: math.Max(base.Vibration, 1.5),
	}
}

func (p *BurstPattern) Name() string {
	return "burst"
}

// SlowLeakPattern drifts from normal towards a leak over its lifetime.
type SlowLeakPattern struct {
	start int
	began bool
}

func (p *SlowLeakPattern) Apply(base Sample, step int, _ int) Sample {
	if !p.began {
		p.start = step
		p.began = true
	}
	progress := float64(step - p.start)
	return Sample{
		Flow:      base.Flow + math.Min(progress*0.05, 4),
		Pressure:  base.Pressure - math.Min(progress*0.5, 35),
		Vibration: base.Vibration + math.Min(progress*0.005, 0.3),
	}
}

func (p *SlowLeakPattern) Name() string {
	return "slow_leak"
}

func jitter(rng *rand.Rand, v, variance float64) float64 {
	return v + (rng.Float64()*2-1)*variance
}
