package source

import (
	"context"
	"sync"
	"time"

	"github.com/OldStager01/leakwatch/internal/simulator"
	"github.com/OldStager01/leakwatch/pkg/models"
)

// MockSource generates readings in-process from a simulated device.
type MockSource struct {
	device *simulator.Device
	now    func() time.Time

	mu           sync.Mutex
	shouldFail   bool
	failureError error
}

type MockSourceConfig struct {
	Device  simulator.DeviceConfig
	Pattern string
	Now     func() time.Time
}

func NewMockSource(cfg MockSourceConfig) *MockSource {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	device := simulator.NewDevice(cfg.Device)
	device.SetPattern(simulator.ParsePattern(cfg.Pattern))

	return &MockSource{
		device: device,
		now:    now,
	}
}

func (s *MockSource) Device() *simulator.Device {
	return s.device
}

func (s *MockSource) SetShouldFail(shouldFail bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFail = shouldFail
	s.failureError = err
}

func (s *MockSource) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.shouldFail {
		return nil
	}
	if s.failureError != nil {
		return s.failureError
	}
	return ErrFetchFailed
}

// Latest advances the device by one sample and returns its window.
func (s *MockSource) Latest(ctx context.Context) ([]models.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.failure(); err != nil {
		return nil, err
	}

	s.device.Next(s.now())
	return s.device.Latest(), nil
}

func (s *MockSource) HealthCheck(ctx context.Context) error {
	return s.failure()
}

func (s *MockSource) Close() error {
	return nil
}
