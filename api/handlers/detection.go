package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/leakwatch/internal/engine"
	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/models"
	"github.com/OldStager01/leakwatch/pkg/validation"
)

const maxForecastHours = 168

// DetectionHandler serves the per-reading and per-series detection
// endpoints of one installation.
type DetectionHandler struct {
	engine *engine.Engine
	limits Limits
	now    func() time.Time
}

func NewDetectionHandler(e *engine.Engine, limits Limits) *DetectionHandler {
	return &DetectionHandler{engine: e, limits: limits.withDefaults(), now: time.Now}
}

type SeriesRequest struct {
	Readings []models.WireReading `json:"readings"`
}

type ForecastResponse struct {
	InstallationID     string            `json:"installation_id"`
	Forecast           models.Forecast   `json:"forecast"`
	HoursUntilCritical int               `json:"hours_until_critical"`
	AlertLevel         models.AlertLevel `json:"alert_level"`
}

func (h *DetectionHandler) bindSeries(c *gin.Context) ([]models.SensorReading, bool) {
	var req SeriesRequest
	if c.Request.ContentLength == 0 {
		return nil, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return nil, false
	}
	if len(req.Readings) > h.limits.MaxSeriesLength {
		badRequest(c, fmt.Sprintf("too many readings, maximum %d", h.limits.MaxSeriesLength))
		return nil, false
	}
	readings, err := toReadings(req.Readings, h.now())
	if err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	return readings, true
}

func (h *DetectionHandler) bindReading(c *gin.Context) (models.SensorReading, bool) {
	var req models.WireReading
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return models.SensorReading{}, false
	}
	r, err := toReading(req, h.now())
	if err != nil {
		badRequest(c, err.Error())
		return models.SensorReading{}, false
	}
	return r, true
}

// Ingest runs one reading through the full pipeline and returns the
// assessment.
func (h *DetectionHandler) Ingest(c *gin.Context) {
	r, ok := h.bindReading(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	a, err := h.engine.Process(ctx, r)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		logger.FromContext(ctx).WithError(err).Warn("Reading processing aborted")
		c.JSON(code, gin.H{"error": "failed to process reading"})
		return
	}
	c.JSON(http.StatusOK, a)
}

// DetectSeries evaluates a batch of readings at the current threshold.
func (h *DetectionHandler) DetectSeries(c *gin.Context) {
	readings, ok := h.bindSeries(c)
	if !ok {
		return
	}
	if len(readings) == 0 {
		badRequest(c, "readings must not be empty")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	decision := h.engine.DetectInSeries(ctx, readings)
	c.JSON(http.StatusOK, gin.H{
		"decision":  decision,
		"threshold": h.engine.Threshold(),
	})
}

func (h *DetectionHandler) ExplainSingle(c *gin.Context) {
	r, ok := h.bindReading(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	c.JSON(http.StatusOK, h.engine.ExplainSingle(ctx, r))
}

// ExplainSequence explains the posted readings, or the buffered ones when
// the request carries none.
func (h *DetectionHandler) ExplainSequence(c *gin.Context) {
	readings, ok := h.bindSeries(c)
	if !ok {
		return
	}
	if len(readings) == 0 {
		readings = h.engine.Buffered()
	}
	if len(readings) == 0 {
		badRequest(c, "no readings posted and none buffered")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	c.JSON(http.StatusOK, h.engine.ExplainSequence(ctx, readings))
}

// Forecast projects hourly leak risk. hours defaults to the configured
// horizon.
func (h *DetectionHandler) Forecast(c *gin.Context) {
	hours := 0
	if s := c.Query("hours"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err == nil {
			err = validation.ValidateForecastHours(parsed, maxForecastHours)
		}
		if err != nil {
			badRequest(c, fmt.Sprintf("hours must be between 1 and %d", maxForecastHours))
			return
		}
		hours = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	f := h.engine.Forecast(ctx, hours)
	until := h.engine.HoursUntilCritical(f)
	c.JSON(http.StatusOK, ForecastResponse{
		InstallationID:     h.engine.InstallationID(),
		Forecast:           f,
		HoursUntilCritical: until,
		AlertLevel:         models.AlertLevelFor(until),
	})
}
