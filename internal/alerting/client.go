package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/models"
)

var ErrSendFailed = errors.New("alert delivery failed")

// Sender delivers alerts to wherever the household is notified.
type Sender interface {
	Send(ctx context.Context, alert *models.Alert) error
}

type ClientConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// Client talks to the backend alert inbox.
type Client struct {
	client   *http.Client
	endpoint string
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		client:   &http.Client{Timeout: timeout},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
	}
}

// Send posts the alert to {endpoint}/alertas.
func (c *Client) Send(ctx context.Context, alert *models.Alert) error {
	body, err := json.Marshal(models.ToWireAlert(alert))
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrSendFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/alertas", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status code %d", ErrSendFailed, resp.StatusCode)
	}

	logger.WithInstallation(alert.InstallationID).Infof("Delivered %s alert %s", alert.Level, alert.ID)
	return nil
}

// History fetches {endpoint}/alertas/historial.
func (c *Client) History(ctx context.Context) ([]models.WireAlert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/alertas/historial", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrSendFailed, resp.StatusCode)
	}

	var alerts []models.WireAlert
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		return nil, fmt.Errorf("%w: decode history: %v", ErrSendFailed, err)
	}
	return alerts, nil
}

// UpdateStatus patches {endpoint}/alertas/{timestamp}/status. Nil flags
// are left untouched.
func (c *Client) UpdateStatus(ctx context.Context, timestamp time.Time, reviewed, deleted *bool) error {
	form := url.Values{}
	if reviewed != nil {
		form.Set("revisada", strconv.FormatBool(*reviewed))
	}
	if deleted != nil {
		form.Set("eliminada", strconv.FormatBool(*deleted))
	}

	ts := url.PathEscape(timestamp.UTC().Format(time.RFC3339))
	u := fmt.Sprintf("%s/alertas/%s/status", c.endpoint, ts)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status code %d", ErrSendFailed, resp.StatusCode)
	}
	return nil
}

// Noop discards alerts. Used when delivery is disabled.
type Noop struct{}

func (Noop) Send(context.Context, *models.Alert) error { return nil }
