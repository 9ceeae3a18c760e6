package simulator_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/leakwatch/internal/simulator"
	"github.com/OldStager01/leakwatch/pkg/models"
)

var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newDevice() *simulator.Device {
	return simulator.NewDevice(simulator.DeviceConfig{Seed: 42, HistorySize: 5, Location: time.UTC})
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"normal", "normal"},
		{"leak", "leak"},
		{"burst", "burst"},
		{"slow_leak", "slow_leak"},
		{"unknown", "normal"},
		{"", "normal"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, simulator.ParsePattern(tt.in).Name())
		})
	}
}

func TestDevice_NormalReadingsInRange(t *testing.T) {
	d := newDevice()
	for i := 0; i < 48; i++ {
		r := d.Next(noon.Add(time.Duration(i) * time.Hour))
		assert.True(t, r.InRange(), "reading %d out of range: %+v", i, r)
	}
	assert.Len(t, d.Latest(), 5)
}

func TestDevice_LeakRaisesFlowAndDropsPressure(t *testing.T) {
	d := newDevice()
	normal := d.Next(noon)

	d.SetPattern(simulator.PatternLeak)
	leak := d.Next(noon.Add(time.Minute))

	assert.Greater(t, leak.Flow, normal.Flow+3)
	assert.Less(t, leak.Pressure, normal.Pressure-25)
	assert.Equal(t, "leak", d.Pattern())
}

func TestDevice_InjectExpires(t *testing.T) {
	d := newDevice()
	d.Inject(simulator.PatternBurst, noon.Add(time.Minute))
	assert.Equal(t, "burst", d.Pattern())

	burst := d.Next(noon)
	assert.Greater(t, burst.Flow, 8.0)

	after := d.Next(noon.Add(2 * time.Minute))
	assert.Less(t, after.Flow, 5.0)
	assert.Equal(t, "normal", d.Pattern())
}

func TestSlowLeak_Drifts(t *testing.T) {
	p := simulator.ParsePattern("slow_leak")
	base := simulator.Sample{Flow: 2, Pressure: 80, Vibration: 0.1}

	first := p.Apply(base, 0, 12)
	later := p.Apply(base, 40, 12)
	capped := p.Apply(base, 1000, 12)

	assert.Equal(t, base, first)
	assert.InDelta(t, 4.0, later.Flow, 1e-9)
	assert.InDelta(t, 60.0, later.Pressure, 1e-9)
	assert.InDelta(t, 6.0, capped.Flow, 1e-9)
	assert.InDelta(t, 45.0, capped.Pressure, 1e-9)
}

func TestSimulator_LatestEndpoint(t *testing.T) {
	sim := simulator.New(simulator.Config{Device: simulator.DeviceConfig{Seed: 1, HistorySize: 3}})
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()

	var got []models.WireReading
	for i := 0; i < 4; i++ {
		resp, err := http.Get(srv.URL + "/datos/ultimos")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		resp.Body.Close()
	}

	assert.Len(t, got, 3)
	for _, w := range got {
		assert.NotEmpty(t, w.Timestamp)
		assert.Greater(t, w.Presion, 0.0)
	}
}

func TestSimulator_PatternEndpoint(t *testing.T) {
	sim := simulator.New(simulator.Config{})
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/pattern", "application/json", strings.NewReader(`{"pattern":"burst"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "burst", sim.Device().Pattern())

	resp, err = http.Get(srv.URL + "/pattern")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSimulator_AlertLifecycle(t *testing.T) {
	sim := simulator.New(simulator.Config{})
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()

	body := `{"timestamp":"2026-03-10T12:00:00Z","nivel":"critical","mensaje":"fuga"}`
	resp, err := http.Post(srv.URL+"/alertas", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	form := url.Values{"revisada": {"true"}}
	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/alertas/2026-03-10T12:00:00Z/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	alerts := sim.Alerts()
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Revisada)
	assert.False(t, alerts[0].Eliminada)

	form = url.Values{"eliminada": {"true"}}
	req, _ = http.NewRequest(http.MethodPatch, srv.URL+"/alertas/2026-03-10T12:00:00Z/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/alertas/historial")
	require.NoError(t, err)
	var history []models.WireAlert
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	resp.Body.Close()
	assert.Empty(t, history)

	req, _ = http.NewRequest(http.MethodPatch, srv.URL+"/alertas/2020-01-01T00:00:00Z/status", strings.NewReader("revisada=true"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
