package baseline

import (
	"errors"
	"sync"
	"time"

	"github.com/OldStager01/leakwatch/internal/buffer"
	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/models"
)

var (
	ErrMalformedProfile = errors.New("malformed baseline profile")
	ErrProfileNotFound  = errors.New("baseline profile not found")
	ErrNotCalibrated    = errors.New("baseline not calibrated")
)

const (
	DefaultMinSamples       = 100
	DefaultMaxSamples       = 1000
	DefaultHourlyMinSamples = 10
	DefaultAnomalyThreshold = 0.65
	scoreHistoryLength      = 20
)

type Config struct {
	InstallationID   string
	MinSamples       int
	MaxSamples       int
	HourlyMinSamples int
	AnomalyThreshold float64
	Location         *time.Location
}

func DefaultConfig() Config {
	return Config{
		MinSamples:       DefaultMinSamples,
		MaxSamples:       DefaultMaxSamples,
		HourlyMinSamples: DefaultHourlyMinSamples,
		AnomalyThreshold: DefaultAnomalyThreshold,
		Location:         time.Local,
	}
}

func (c *Config) applyDefaults() {
	if c.MinSamples <= 0 {
		c.MinSamples = DefaultMinSamples
	}
	if c.MaxSamples < c.MinSamples {
		c.MaxSamples = max(DefaultMaxSamples, c.MinSamples)
	}
	if c.HourlyMinSamples <= 0 {
		c.HourlyMinSamples = DefaultHourlyMinSamples
	}
	if c.AnomalyThreshold <= 0 {
		c.AnomalyThreshold = DefaultAnomalyThreshold
	}
	if c.Location == nil {
		c.Location = time.Local
	}
}

// Result is the outcome of evaluating one reading against the baseline.
type Result struct {
	Score       float64        `json:"score"`
	ZScores     models.ZScores `json:"z_scores"`
	Explanation string         `json:"explanation"`
	IsAnomaly   bool           `json:"is_anomaly"`
	Calibrated  bool           `json:"calibrated"`
}

// Baseline learns the normal behaviour of one installation and scores
// readings against it. It starts in the calibrating phase and moves to
// calibrated exactly once per calibration cycle.
type Baseline struct {
	cfg Config

	mu      sync.RWMutex
	phase   models.BaselinePhase
	samples []models.SensorReading
	profile *Profile

	scores *buffer.Ring[float64]

	onCalibrated func(*Profile)
	now          func() time.Time
}

type Option func(*Baseline)

// WithCalibrationHook registers a callback run after the calibrating to
// calibrated transition, outside the baseline lock.
func WithCalibrationHook(fn func(*Profile)) Option {
	return func(b *Baseline) { b.onCalibrated = fn }
}

func WithClock(now func() time.Time) Option {
	return func(b *Baseline) { b.now = now }
}

func New(cfg Config, opts ...Option) *Baseline {
	cfg.applyDefaults()
	b := &Baseline{
		cfg:     cfg,
		phase:   models.PhaseCalibrating,
		samples: make([]models.SensorReading, 0, cfg.MinSamples),
		scores:  buffer.NewRing[float64](scoreHistoryLength),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Baseline) hour(r models.SensorReading) int {
	return r.Timestamp.In(b.cfg.Location).Hour()
}

// Process records the reading and returns its anomaly score in [0,1].
func (b *Baseline) Process(r models.SensorReading) float64 {
	b.mu.Lock()
	var transitioned bool
	if b.phase == models.PhaseCalibrating || len(b.samples) < b.cfg.MaxSamples {
		b.samples = append(b.samples, r)
		if len(b.samples) > b.cfg.MaxSamples {
			b.samples = b.samples[len(b.samples)-b.cfg.MaxSamples:]
		}
		if b.phase == models.PhaseCalibrating && len(b.samples) >= b.cfg.MinSamples {
			b.profile = buildProfile(b.samples, b.cfg.Location, b.cfg.HourlyMinSamples, b.now())
			b.phase = models.PhaseCalibrated
			transitioned = true
		}
	}
	profile := b.profile
	calibrated := b.phase == models.PhaseCalibrated
	b.mu.Unlock()

	var score float64
	if calibrated {
		z, _ := profile.zScores(r, b.hour(r), b.cfg.HourlyMinSamples)
		score = ZScoreAnomaly(z)
	} else {
		score = RuleScore(r)
	}
	b.scores.Push(score)

	if transitioned {
		logger.WithInstallation(b.cfg.InstallationID).
			WithField("samples", b.cfg.MinSamples).
			Info("Baseline calibrated")
		if b.onCalibrated != nil {
			b.onCalibrated(profile)
		}
	}
	return score
}

// Evaluate runs Process and bundles the score with its z-scores and a
// human readable explanation.
func (b *Baseline) Evaluate(r models.SensorReading) Result {
	score := b.Process(r)
	return Result{
		Score:       score,
		ZScores:     b.ZScores(r),
		Explanation: b.Explain(r, score),
		IsAnomaly:   score > b.cfg.AnomalyThreshold,
		Calibrated:  b.IsCalibrated(),
	}
}

// ZScores returns the deviations of r from the profile, all zero while
// calibrating.
func (b *Baseline) ZScores(r models.SensorReading) models.ZScores {
	profile := b.Profile()
	if profile == nil {
		return models.ZScores{}
	}
	z, _ := profile.zScores(r, b.hour(r), b.cfg.HourlyMinSamples)
	return z
}

func (b *Baseline) IsCalibrated() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.phase == models.PhaseCalibrated
}

func (b *Baseline) Phase() models.BaselinePhase {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.phase
}

// Profile returns the current profile, nil while calibrating.
func (b *Baseline) Profile() *Profile {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.phase != models.PhaseCalibrated {
		return nil
	}
	return b.profile
}

// Progress reports calibration progress as a percentage.
func (b *Baseline) Progress() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.progressLocked()
}

func (b *Baseline) progressLocked() int {
	if b.phase == models.PhaseCalibrated {
		return 100
	}
	return min(len(b.samples)*100/b.cfg.MinSamples, 99)
}

func (b *Baseline) SampleCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// RecentScores returns the trailing anomaly scores, oldest first.
func (b *Baseline) RecentScores() []float64 {
	return b.scores.Snapshot()
}

func (b *Baseline) Stats() models.BaselineStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := models.BaselineStats{
		Phase:       b.phase,
		Progress:    b.progressLocked(),
		SampleCount: len(b.samples),
	}
	if b.phase == models.PhaseCalibrated && b.profile != nil {
		p := b.profile
		s.Flow = p.Flow.summary()
		s.Pressure = p.Pressure.summary()
		s.Vibration = p.Vibration.summary()
		s.FlowPressureCorr = p.FlowPressureCorrelation
		s.HourlyPatternCount = len(p.Hourly)
		updated := p.LastUpdated
		s.LastUpdated = &updated
	}
	return s
}

// Reset discards the profile and the sample window and re-enters the
// calibrating phase.
func (b *Baseline) Reset() {
	b.mu.Lock()
	b.phase = models.PhaseCalibrating
	b.samples = make([]models.SensorReading, 0, b.cfg.MinSamples)
	b.profile = nil
	b.mu.Unlock()

	b.scores.Clear()
}

func (b *Baseline) InstallationID() string {
	return b.cfg.InstallationID
}
