package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/leakwatch/internal/resilience"
	"github.com/OldStager01/leakwatch/internal/simulator"
	"github.com/OldStager01/leakwatch/internal/source"
	"github.com/OldStager01/leakwatch/pkg/models"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datos/ultimos", r.URL.Path)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSource_Latest(t *testing.T) {
	body := `[
		{"timestamp":"2026-03-10T12:05:00Z","flujo":2.5,"presion":78,"vibracion":0.1},
		{"timestamp":"2026-03-10T12:00:00Z","flujo":2.1,"presion":80,"vibracion":0.1},
		{"timestamp":"2026-03-10T12:10:00Z","flujo":25,"presion":80,"vibracion":0.1}
	]`
	srv := serve(t, http.StatusOK, body)

	src := source.NewHTTPSource(source.HTTPSourceConfig{Endpoint: srv.URL + "/", InstallationID: "casa-1"})
	defer src.Close()

	readings, err := src.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 2.1, readings[0].Flow)
	assert.Equal(t, 2.5, readings[1].Flow)
	assert.True(t, readings[0].Timestamp.Before(readings[1].Timestamp))
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, "", source.ErrFetchFailed},
		{"bad json", http.StatusOK, "{not json", source.ErrInvalidResponse},
		{"empty list", http.StatusOK, "[]", source.ErrNoReadings},
		{"all out of range", http.StatusOK, `[{"timestamp":"2026-03-10T12:00:00Z","flujo":-1,"presion":80,"vibracion":0.1}]`, source.ErrNoReadings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			src := source.NewHTTPSource(source.HTTPSourceConfig{Endpoint: srv.URL})

			_, err := src.Latest(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPSource_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	src := source.NewHTTPSource(source.HTTPSourceConfig{Endpoint: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := src.Latest(context.Background())
	assert.ErrorIs(t, err, source.ErrTimeout)
}

func TestHTTPSource_HealthCheck(t *testing.T) {
	srv := serve(t, http.StatusOK, "[]")
	src := source.NewHTTPSource(source.HTTPSourceConfig{Endpoint: srv.URL})
	assert.NoError(t, src.HealthCheck(context.Background()))

	down := serve(t, http.StatusServiceUnavailable, "")
	src = source.NewHTTPSource(source.HTTPSourceConfig{Endpoint: down.URL})
	assert.ErrorIs(t, src.HealthCheck(context.Background()), source.ErrFetchFailed)
}

func TestHTTPSource_AgainstSimulator(t *testing.T) {
	sim := simulator.New(simulator.Config{Device: simulator.DeviceConfig{Seed: 3, HistorySize: 4}})
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()

	src := source.NewHTTPSource(source.HTTPSourceConfig{Endpoint: srv.URL})
	readings, err := src.Latest(context.Background())
	require.NoError(t, err)
	assert.Len(t, readings, 1)
	assert.True(t, readings[0].InRange())
}

func TestMQTTSource_Ingest(t *testing.T) {
	src := source.NewMQTTSource(source.MQTTSourceConfig{Broker: "localhost:1883", Topic: "casa/1/sensor", BufferSize: 3})

	_, err := src.Latest(context.Background())
	assert.ErrorIs(t, err, source.ErrNoReadings)

	require.NoError(t, src.Ingest([]byte(`{"timestamp":"2026-03-10T12:00:00Z","flujo":2,"presion":80,"vibracion":0.1}`)))
	require.NoError(t, src.Ingest([]byte(`[
		{"timestamp":"2026-03-10T12:02:00Z","flujo":2.2,"presion":79,"vibracion":0.1},
		{"timestamp":"2026-03-10T12:01:00Z","flujo":2.1,"presion":80,"vibracion":0.1},
		{"timestamp":"2026-03-10T12:03:00Z","flujo":2.3,"presion":500,"vibracion":0.1}
	]`)))
	assert.ErrorIs(t, src.Ingest([]byte("garbage")), source.ErrInvalidResponse)

	readings, err := src.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, []float64{2, 2.1, 2.2}, []float64{readings[0].Flow, readings[1].Flow, readings[2].Flow})

	assert.ErrorIs(t, src.HealthCheck(context.Background()), source.ErrFetchFailed)
	assert.NoError(t, src.Close())
}

func TestMockSource(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	src := source.NewMockSource(source.MockSourceConfig{
		Device:  simulator.DeviceConfig{Seed: 9, HistorySize: 5},
		Pattern: "leak",
		Now: func() time.Time {
			now = now.Add(time.Minute)
			return now
		},
	})

	var readings []models.SensorReading
	var err error
	for i := 0; i < 7; i++ {
		readings, err = src.Latest(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, readings, 5)
	assert.Greater(t, readings[4].Flow, 5.0)

	boom := errors.New("boom")
	src.SetShouldFail(true, boom)
	_, err = src.Latest(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, src.HealthCheck(context.Background()), boom)

	src.SetShouldFail(true, nil)
	_, err = src.Latest(context.Background())
	assert.ErrorIs(t, err, source.ErrFetchFailed)
}

type flakySource struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakySource) Latest(ctx context.Context) ([]models.SensorReading, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, source.ErrFetchFailed
	}
	return []models.SensorReading{models.NewSensorReading(time.Now(), 2, 80, 0.1)}, nil
}

func (f *flakySource) HealthCheck(ctx context.Context) error { return nil }
func (f *flakySource) Close() error                          { return nil }

func TestResilientSource_RetriesThenSucceeds(t *testing.T) {
	flaky := &flakySource{failures: 2}
	src := source.NewResilientSource(source.ResilientSourceConfig{
		Source:        flaky,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})

	readings, err := src.Latest(context.Background())
	require.NoError(t, err)
	assert.Len(t, readings, 1)
	assert.Equal(t, int32(3), flaky.calls.Load())
	assert.Equal(t, resilience.StateClosed, src.CircuitState())
}

func TestResilientSource_OpensCircuit(t *testing.T) {
	flaky := &flakySource{failures: 100}
	src := source.NewResilientSource(source.ResilientSourceConfig{
		Source:        flaky,
		MaxFailures:   2,
		Timeout:       time.Hour,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})

	for i := 0; i < 2; i++ {
		_, err := src.Latest(context.Background())
		assert.ErrorIs(t, err, source.ErrFetchFailed)
	}
	assert.Equal(t, resilience.StateOpen, src.CircuitState())

	_, err := src.Latest(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(4), flaky.calls.Load())

	src.ResetCircuit()
	assert.Equal(t, resilience.StateClosed, src.CircuitState())
}

func TestResilientSource_HalfOpenTrials(t *testing.T) {
	flaky := &flakySource{failures: 1}
	src := source.NewResilientSource(source.ResilientSourceConfig{
		Source:        flaky,
		MaxFailures:   1,
		Timeout:       10 * time.Millisecond,
		HalfOpenMax:   2,
		RetryAttempts: 1,
	})

	_, err := src.Latest(context.Background())
	require.ErrorIs(t, err, source.ErrFetchFailed)
	require.Equal(t, resilience.StateOpen, src.CircuitState())

	time.Sleep(20 * time.Millisecond)

	_, err = src.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resilience.StateHalfOpen, src.CircuitState(), "one trial of two")

	_, err = src.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resilience.StateClosed, src.CircuitState())
}

func TestResilientSource_CancelledContext(t *testing.T) {
	flaky := &flakySource{}
	src := source.NewResilientSource(source.ResilientSourceConfig{Source: flaky})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Latest(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), flaky.calls.Load())
}
