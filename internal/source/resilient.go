package source

import (
	"context"
	"time"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/internal/resilience"
	"github.com/OldStager01/leakwatch/pkg/models"
)

// ResilientSource retries a source and trips a circuit breaker when the
// backend keeps failing.
type ResilientSource struct {
	source         Source
	installationID string
	circuitBreaker *resilience.CircuitBreaker
	retryAttempts  int
	retryDelay     time.Duration
}

type ResilientSourceConfig struct {
	Source         Source
	InstallationID string
	MaxFailures    int
	Timeout        time.Duration
	HalfOpenMax    int
	RetryAttempts  int
	RetryDelay     time.Duration
	OnStateChange  func(name string, from, to resilience.State)
}

func NewResilientSource(cfg ResilientSourceConfig) *ResilientSource {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 1 * time.Second
	}

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:          "source",
		MaxFailures:   cfg.MaxFailures,
		Timeout:       cfg.Timeout,
		HalfOpenMax:   cfg.HalfOpenMax,
		OnStateChange: cfg.OnStateChange,
	})

	return &ResilientSource{
		source:         cfg.Source,
		installationID: cfg.InstallationID,
		circuitBreaker: cb,
		retryAttempts:  cfg.RetryAttempts,
		retryDelay:     cfg.RetryDelay,
	}
}

func (s *ResilientSource) Latest(ctx context.Context) ([]models.SensorReading, error) {
	var readings []models.SensorReading

	err := s.circuitBreaker.ExecuteCtx(ctx, func(ctx context.Context) error {
		var lastErr error
		for attempt := 1; attempt <= s.retryAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			var err error
			readings, err = s.source.Latest(ctx)
			if err == nil {
				return nil
			}

			lastErr = err
			logger.WithInstallation(s.installationID).Warnf(
				"Fetch attempt %d/%d failed: %v",
				attempt, s.retryAttempts, err,
			)

			if attempt < s.retryAttempts {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.retryDelay):
				}
			}
		}
		return lastErr
	})

	if err != nil {
		return nil, err
	}
	return readings, nil
}

func (s *ResilientSource) HealthCheck(ctx context.Context) error {
	return s.source.HealthCheck(ctx)
}

func (s *ResilientSource) Close() error {
	return s.source.Close()
}

func (s *ResilientSource) CircuitState() resilience.State {
	return s.circuitBreaker.State()
}

func (s *ResilientSource) ResetCircuit() {
	s.circuitBreaker.Reset()
}
