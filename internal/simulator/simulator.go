// Package simulator serves a fake installation backend: a sensor that
// can be pushed into leak patterns, and an alert inbox.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/models"
)

type Config struct {
	Port   int
	Device DeviceConfig
}

type Simulator struct {
	config     Config
	device     *Device
	alerts     []models.WireAlert
	mu         sync.RWMutex
	now        func() time.Time
	httpServer *http.Server
}

func New(cfg Config) *Simulator {
	if cfg.Port == 0 {
		cfg.Port = 9000
	}

	return &Simulator{
		config: cfg,
		device: NewDevice(cfg.Device),
		alerts: make([]models.WireAlert, 0),
		now:    time.Now,
	}
}

func cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// Device exposes the simulated sensor.
func (s *Simulator) Device() *Device {
	return s.device
}

// Handler builds the HTTP routes.
func (s *Simulator) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", cors(s.healthHandler))
	mux.HandleFunc("/datos/ultimos", cors(s.latestHandler))
	mux.HandleFunc("/pattern", cors(s.patternHandler))
	mux.HandleFunc("/leak", cors(s.leakHandler))
	mux.HandleFunc("/alertas", cors(s.createAlertHandler))
	mux.HandleFunc("/alertas/historial", cors(s.alertHistoryHandler))
	mux.HandleFunc("/alertas/", cors(s.alertStatusHandler))

	return mux
}

func (s *Simulator) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Infof("Simulator listening on %s", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Simulator server error: %v", err)
		}
	}()

	return nil
}

func (s *Simulator) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Alerts returns the alerts received so far.
func (s *Simulator) Alerts() []models.WireAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.WireAlert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HTTP Handlers

func (s *Simulator) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "leak-simulator",
		"pattern": s.device.Pattern(),
	})
}

// latestHandler advances the sensor by one sample per request.
func (s *Simulator) latestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.device.Next(s.now())
	latest := s.device.Latest()

	out := make([]models.WireReading, 0, len(latest))
	for _, reading := range latest {
		out = append(out, models.ToWire(reading))
	}
	writeJSON(w, http.StatusOK, out)
}

type PatternRequest struct {
	Pattern string `json:"pattern"` // "normal", "leak", "burst", "slow_leak"
}

func (s *Simulator) patternHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pattern := ParsePattern(req.Pattern)
	s.device.SetPattern(pattern)

	logger.Infof("Set simulator pattern %s", pattern.Name())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "pattern set",
		"pattern": pattern.Name(),
	})
}

type LeakRequest struct {
	Pattern  string `json:"pattern"`
	Duration string `json:"duration"`
}

func (s *Simulator) leakHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	duration, err := time.ParseDuration(req.Duration)
	if err != nil {
		duration = 5 * time.Minute
	}
	pattern := ParsePattern(req.Pattern)
	if pattern == PatternNormal {
		pattern = PatternLeak
	}

	s.device.Inject(pattern, s.now().Add(duration))

	logger.Infof("Injected %s for %s", pattern.Name(), duration)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "leak injected",
		"pattern":  pattern.Name(),
		"duration": duration.String(),
	})
}

func (s *Simulator) createAlertHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var alert models.WireAlert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if alert.Timestamp == "" || alert.Nivel == "" {
		http.Error(w, "timestamp and nivel required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	s.mu.Unlock()

	logger.Infof("Received %s alert: %s", alert.Nivel, alert.Mensaje)

	writeJSON(w, http.StatusCreated, alert)
}

func (s *Simulator) alertHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	out := make([]models.WireAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if !a.Eliminada {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, out)
}

// alertStatusHandler serves PATCH /alertas/{timestamp}/status.
func (s *Simulator) alertStatusHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/alertas/")
	timestamp, ok := strings.CutSuffix(rest, "/status")
	if !ok || timestamp == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	reviewed, _ := strconv.ParseBool(r.PostForm.Get("revisada"))
	deleted, _ := strconv.ParseBool(r.PostForm.Get("eliminada"))

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].Timestamp != timestamp {
			continue
		}
		if r.PostForm.Has("revisada") {
			s.alerts[i].Revisada = reviewed
		}
		if r.PostForm.Has("eliminada") {
			s.alerts[i].Eliminada = deleted
		}
		writeJSON(w, http.StatusOK, s.alerts[i])
		return
	}

	http.Error(w, "alert not found", http.StatusNotFound)
}
