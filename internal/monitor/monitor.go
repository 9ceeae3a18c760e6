// Package monitor polls the installation's reading source and raises
// alerts when the engine detects a leak.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OldStager01/leakwatch/internal/alerting"
	"github.com/OldStager01/leakwatch/internal/baseline"
	"github.com/OldStager01/leakwatch/internal/engine"
	"github.com/OldStager01/leakwatch/internal/events"
	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/internal/metrics"
	"github.com/OldStager01/leakwatch/internal/scoring"
	"github.com/OldStager01/leakwatch/internal/source"
	"github.com/OldStager01/leakwatch/pkg/models"
)

const (
	DefaultInterval        = 60 * time.Second
	DefaultDeliveryTimeout = 10 * time.Second
)

type Config struct {
	Interval        time.Duration
	SaveInterval    time.Duration
	ForecastHours   int
	DeliveryTimeout time.Duration

	Engine       *engine.Engine
	Source       source.Source
	Sender       alerting.Sender
	ProfileStore baseline.Store
	Publisher    *events.Publisher
	Metrics      *metrics.Metrics
}

// CycleResult is what one polling cycle observed.
type CycleResult struct {
	Readings int                    `json:"readings"`
	Baseline baseline.Result        `json:"baseline"`
	Decision scoring.SeriesDecision `json:"decision"`
	Alert    *models.Alert          `json:"alert,omitempty"`
}

type Monitor struct {
	config   Config
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight sync.WaitGroup
	running  bool
	mu       sync.Mutex
	lastSave time.Time
	now      func() time.Time
	log      *logrus.Entry
}

func New(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if cfg.Sender == nil {
		cfg.Sender = alerting.Noop{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
		log:    logger.WithInstallation(cfg.Engine.InstallationID()).WithField("component", "monitor"),
	}
}

func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	m.running = true
	m.lastSave = m.now()
	m.wg.Add(1)
	go m.run()

	m.log.WithField("interval", m.config.Interval).Info("Monitor started")
	return nil
}

// Stop ends the polling loop and waits for pending alert deliveries.
func (m *Monitor) Stop() {
	m.mu.Lock()
	wasRunning := m.running
	m.running = false
	m.mu.Unlock()

	if wasRunning {
		m.cancel()
		m.wg.Wait()
		m.log.Info("Monitor stopped")
	}
	m.inflight.Wait()
}

func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.tick()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Monitor) cycleTimeout() time.Duration {
	if m.config.Interval > 2*time.Second {
		return m.config.Interval - time.Second
	}
	return m.config.Interval
}

func (m *Monitor) tick() {
	ctx, cancel := context.WithTimeout(m.ctx, m.cycleTimeout())
	defer cancel()

	if _, err := m.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		m.log.WithError(err).Warn("Monitoring cycle failed")
	}
}

// RunCycle fetches the latest readings and runs one detection pass.
func (m *Monitor) RunCycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	eng := m.config.Engine
	id := eng.InstallationID()

	readings, err := m.config.Source.Latest(ctx)
	if err != nil {
		if m.config.Metrics != nil {
			m.config.Metrics.IncSourceErrors(id)
		}
		m.config.Publisher.Error("Reading fetch failed", err)
		return nil, err
	}
	if m.config.Metrics != nil {
		m.config.Metrics.IncReadings(id)
	}

	latest := readings[len(readings)-1]
	wasCalibrated := eng.Baseline().IsCalibrated()

	result := &CycleResult{Readings: len(readings)}
	result.Baseline = eng.EvaluateBaseline(latest)
	if !wasCalibrated && result.Baseline.Calibrated {
		m.saveProfile(ctx)
	}

	result.Decision = eng.DetectInSeries(ctx, readings)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if result.Decision.Leak {
		result.Alert = m.raise(ctx, latest, result.Decision, result.Baseline)
	}

	if m.config.SaveInterval > 0 && m.now().Sub(m.lastSaveTime()) >= m.config.SaveInterval {
		m.saveProfile(ctx)
	}

	if m.config.Metrics != nil {
		m.config.Metrics.ObserveCycle(id, time.Since(start))
	}
	return result, nil
}

// raise builds and delivers the alert for a detected leak. The model
// probability of latest is the last series prediction, or 0 when the rules
// decided.
func (m *Monitor) raise(ctx context.Context, latest models.SensorReading, d scoring.SeriesDecision, res baseline.Result) *models.Alert {
	eng := m.config.Engine

	var ml float64
	if n := len(d.Predictions); n > 0 {
		ml = d.Predictions[n-1]
	}

	forecast := eng.Forecast(ctx, m.config.ForecastHours)
	hours := eng.HoursUntilCritical(forecast)
	fusion := eng.FuseScored(ctx, latest, ml, res)

	alert := alerting.Build(alerting.Detection{
		InstallationID:     eng.InstallationID(),
		Timestamp:          m.now(),
		Forecast:           forecast,
		HoursUntilCritical: hours,
		Fusion:             fusion,
		Importance:         fusion.FeatureImportance,
		BaselineScore:      res.Score,
		ContextualAnomaly:  fusion.IsContextualAnomaly,
	})

	m.log.WithFields(logrus.Fields{
		"level":       alert.Level,
		"probability": fusion.Probability,
		"hours":       hours,
	}).Warn("Leak detected")

	m.config.Publisher.AlertRaised(alert)
	if m.config.Metrics != nil {
		m.config.Metrics.IncAlerts(alert.InstallationID, string(alert.Level))
	}

	m.deliver(alert)
	return alert
}

// deliver sends the alert in the background. Failures are only logged.
func (m *Monitor) deliver(alert *models.Alert) {
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.config.DeliveryTimeout)
		defer cancel()

		if err := m.config.Sender.Send(ctx, alert); err != nil {
			m.log.WithError(err).WithField("alert_id", alert.ID).Warn("Alert delivery failed")
			if m.config.Metrics != nil {
				m.config.Metrics.IncAlertDeliveryErrors(alert.InstallationID)
			}
		}
	}()
}

func (m *Monitor) lastSaveTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSave
}

func (m *Monitor) saveProfile(ctx context.Context) {
	if m.config.ProfileStore == nil {
		return
	}

	m.mu.Lock()
	m.lastSave = m.now()
	m.mu.Unlock()

	err := m.config.Engine.SaveBaseline(ctx, m.config.ProfileStore)
	switch {
	case err == nil:
		m.log.Debug("Baseline profile saved")
	case errors.Is(err, baseline.ErrNotCalibrated):
	default:
		m.log.WithError(err).Error("Failed to save baseline profile")
	}
}
