package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/leakwatch/pkg/models"
)

const requestTimeout = 10 * time.Second

// Limits bounds list sizes and batch lengths accepted by the handlers.
type Limits struct {
	DefaultLimit    int
	MaxLimit        int
	MaxSeriesLength int
}

func (l Limits) withDefaults() Limits {
	if l.DefaultLimit <= 0 {
		l.DefaultLimit = 50
	}
	if l.MaxLimit <= 0 {
		l.MaxLimit = 500
	}
	if l.MaxSeriesLength <= 0 {
		l.MaxSeriesLength = 1000
	}
	return l
}

func (l Limits) parseLimit(c *gin.Context) int {
	limit := l.DefaultLimit
	if s := c.Query("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = min(parsed, l.MaxLimit)
		}
	}
	return limit
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// toReading validates a wire reading against the physical sensor ranges.
func toReading(w models.WireReading, at time.Time) (models.SensorReading, error) {
	r := w.Reading(at)
	if !r.InRange() {
		return r, fmt.Errorf("reading out of range: flujo=%g presion=%g vibracion=%g",
			w.Flujo, w.Presion, w.Vibracion)
	}
	return r, nil
}

// toReadings converts a batch, failing on the first invalid entry.
func toReadings(in []models.WireReading, at time.Time) ([]models.SensorReading, error) {
	out := make([]models.SensorReading, 0, len(in))
	for i, w := range in {
		r, err := toReading(w, at)
		if err != nil {
			return nil, fmt.Errorf("readings[%d]: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}
