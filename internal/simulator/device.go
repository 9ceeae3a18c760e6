package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/OldStager01/leakwatch/internal/buffer"
	"github.com/OldStager01/leakwatch/pkg/models"
)

type DeviceConfig struct {
	Base        Sample
	Variance    float64
	HistorySize int
	Seed        int64
	Location    *time.Location
}

func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Base:        Sample{Flow: 2, Pressure: 80, Vibration: 0.1},
		Variance:    0.05,
		HistorySize: buffer.DefaultSequenceLength,
		Seed:        time.Now().UnixNano(),
		Location:    time.Local,
	}
}

type override struct {
	pattern Pattern
	until   time.Time
}

// Device simulates one installation's sensor. Every Next call produces a
// new reading and keeps the latest few.
type Device struct {
	mu       sync.Mutex
	cfg      DeviceConfig
	rng      *rand.Rand
	pattern  Pattern
	override *override
	step     int
	history  *buffer.SequenceBuffer
}

func NewDevice(cfg DeviceConfig) *Device {
	d := DefaultDeviceConfig()
	if cfg.Base == (Sample{}) {
		cfg.Base = d.Base
	}
	if cfg.Variance <= 0 {
		cfg.Variance = d.Variance
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = d.HistorySize
	}
	if cfg.Seed == 0 {
		cfg.Seed = d.Seed
	}
	if cfg.Location == nil {
		cfg.Location = d.Location
	}

	return &Device{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		pattern: PatternNormal,
		history: buffer.NewSequenceBuffer(cfg.HistorySize),
	}
}

func (d *Device) SetPattern(p Pattern) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pattern = p
	d.override = nil
}

func (d *Device) Pattern() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.override != nil {
		return d.override.pattern.Name()
	}
	return d.pattern.Name()
}

// Inject runs p until the given time, then the device falls back to its
// configured pattern.
func (d *Device) Inject(p Pattern, until time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.override = &override{pattern: p, until: until}
}

// Next generates a reading stamped ts.
func (d *Device) Next(ts time.Time) models.SensorReading {
	d.mu.Lock()
	defer d.mu.Unlock()

	pattern := d.pattern
	if d.override != nil {
		if ts.Before(d.override.until) {
			pattern = d.override.pattern
		} else {
			d.override = nil
		}
	}

	s := pattern.Apply(d.cfg.Base, d.step, ts.In(d.cfg.Location).Hour())
	d.step++

	v := d.cfg.Variance
	r := models.NewSensorReading(ts,
		clamp(jitter(d.rng, s.Flow, s.Flow*v), models.MaxFlow),
		clamp(jitter(d.rng, s.Pressure, s.Pressure*v), models.MaxPressure),
		clamp(jitter(d.rng, s.Vibration, s.Vibration*v), models.MaxVibration),
	)
	d.history.Push(r)
	return r
}

// Latest returns the retained readings, oldest first.
func (d *Device) Latest() []models.SensorReading {
	return d.history.Snapshot()
}

func clamp(v, hi float64) float64 {
	return math.Max(0, math.Min(v, hi))
}
