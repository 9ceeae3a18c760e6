package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/models"
)

const latestPath = "datos/ultimos"

type HTTPSource struct {
	client         *http.Client
	endpoint       string
	installationID string
	now            func() time.Time
}

type HTTPSourceConfig struct {
	Endpoint       string
	InstallationID string
	Timeout        time.Duration
}

func NewHTTPSource(cfg HTTPSourceConfig) *HTTPSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &HTTPSource{
		client: &http.Client{
			Timeout: timeout,
		},
		endpoint:       strings.TrimRight(cfg.Endpoint, "/"),
		installationID: cfg.InstallationID,
		now:            time.Now,
	}
}

func (s *HTTPSource) Latest(ctx context.Context) ([]models.SensorReading, error) {
	url := fmt.Sprintf("%s/%s", s.endpoint, latestPath)
	log := logger.WithInstallation(s.installationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	log.Debugf("Fetching readings from %s", url)

	resp, err := s.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrFetchFailed, err)
	}

	var wire []models.WireReading
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	readings, discarded := convert(wire, s.now())
	if discarded > 0 {
		log.Warnf("Discarded %d out-of-range readings", discarded)
	}
	if len(readings) == 0 {
		return nil, ErrNoReadings
	}

	log.Debugf("Fetched %d readings", len(readings))
	return readings, nil
}

func (s *HTTPSource) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/%s", s.endpoint, latestPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}
	return nil
}

func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
