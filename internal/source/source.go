// Package source fetches the latest sensor readings of an installation.
package source

import (
	"context"
	"errors"

	"github.com/OldStager01/leakwatch/pkg/models"
)

var (
	ErrFetchFailed     = errors.New("reading fetch failed")
	ErrTimeout         = errors.New("reading fetch timeout")
	ErrInvalidResponse = errors.New("invalid response from data source")
	ErrNoReadings      = errors.New("no readings available")
)

// Source defines the interface for reading sources
type Source interface {
	// Latest returns the most recent readings, oldest first.
	Latest(ctx context.Context) ([]models.SensorReading, error)

	// HealthCheck verifies the source can reach its backend
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the source
	Close() error
}
