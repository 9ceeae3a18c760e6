package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const healthTimeout = 5 * time.Second

// HealthChecker is anything that can report whether its backend is
// reachable: the database, the reading source.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler builds a handler over the named checks. Nil checkers are
// skipped so optional components can be passed unconditionally.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	h := &HealthHandler{checks: make(map[string]HealthChecker, len(checks))}
	for name, c := range checks {
		if c != nil {
			h.checks[name] = c
		}
	}
	return h
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// run executes every check concurrently and reports each outcome.
func (h *HealthHandler) run(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.checks))
		healthy = true
		g       errgroup.Group
	)

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		checker := h.checks[name]
		g.Go(func() error {
			err := checker.HealthCheck(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[name] = "unhealthy: " + err.Error()
				healthy = false
			} else {
				results[name] = "healthy"
			}
			return nil
		})
	}
	// Checkers report through results and always return nil.
	g.Wait()
	return results, healthy
}

func (h *HealthHandler) Health(c *gin.Context) {
	checks, healthy := h.run(c.Request.Context())

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{Status: status, Timestamp: now(), Checks: checks})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	if _, healthy := h.run(c.Request.Context()); !healthy {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "not ready", Timestamp: now()})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ready", Timestamp: now()})
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "alive", Timestamp: now()})
}
