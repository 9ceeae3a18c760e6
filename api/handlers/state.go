package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/leakwatch/internal/baseline"
	"github.com/OldStager01/leakwatch/internal/engine"
	"github.com/OldStager01/leakwatch/internal/logger"
)

// StateHandler exposes the engine's adaptive state: baseline, threshold
// and loaded models.
type StateHandler struct {
	engine   *engine.Engine
	profiles baseline.Store

	modelPath string
	onReload  func(version string, err error)
}

type StateOption func(*StateHandler)

// WithProfileStore enables baseline persistence through the API.
func WithProfileStore(s baseline.Store) StateOption {
	return func(h *StateHandler) { h.profiles = s }
}

// WithModelReload enables reloading the model bundle at path on demand.
func WithModelReload(path string, onReload func(version string, err error)) StateOption {
	return func(h *StateHandler) {
		h.modelPath = path
		h.onReload = onReload
	}
}

func NewStateHandler(e *engine.Engine, opts ...StateOption) *StateHandler {
	h := &StateHandler{engine: e}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *StateHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Status())
}

func (h *StateHandler) Threshold(c *gin.Context) {
	ratio, count := h.engine.ThresholdController().Accuracy()
	c.JSON(http.StatusOK, gin.H{
		"threshold":      h.engine.Threshold(),
		"feedback_count": count,
		"accuracy":       ratio,
	})
}

func (h *StateHandler) Baseline(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Baseline().Stats())
}

func (h *StateHandler) SaveBaseline(c *gin.Context) {
	if h.profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "baseline persistence is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.engine.SaveBaseline(ctx, h.profiles); err != nil {
		if errors.Is(err, baseline.ErrNotCalibrated) {
			c.JSON(http.StatusConflict, gin.H{"error": "baseline is still calibrating"})
			return
		}
		logger.FromContext(ctx).WithError(err).Error("Failed to save baseline profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save baseline"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true, "baseline": h.engine.Baseline().Stats()})
}

func (h *StateHandler) ResetBaseline(c *gin.Context) {
	h.engine.ResetBaseline()
	c.JSON(http.StatusOK, gin.H{"reset": true, "baseline": h.engine.Baseline().Stats()})
}

func (h *StateHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.engine.Registry().Status()})
}

func (h *StateHandler) ReloadModels(c *gin.Context) {
	if h.modelPath == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no model bundle configured"})
		return
	}

	version, err := h.engine.Registry().LoadFile(h.modelPath)
	if h.onReload != nil {
		h.onReload(version, err)
	}
	if err != nil {
		logger.FromContext(c.Request.Context()).WithError(err).Warn("Model reload failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version, "models": h.engine.Registry().Status()})
}
