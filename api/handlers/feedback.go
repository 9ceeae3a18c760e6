package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/leakwatch/internal/engine"
	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/models"
)

// FeedbackStore persists user verdicts so they survive restarts.
type FeedbackStore interface {
	Save(ctx context.Context, installationID string, rec models.FeedbackRecord) error
}

type FeedbackHandler struct {
	engine *engine.Engine
	store  FeedbackStore
}

// NewFeedbackHandler builds the handler; store may be nil.
func NewFeedbackHandler(e *engine.Engine, store FeedbackStore) *FeedbackHandler {
	return &FeedbackHandler{engine: e, store: store}
}

type FeedbackRequest struct {
	Reading models.WireReading `json:"reading"`
	Correct *bool              `json:"correct" binding:"required"`
}

type FeedbackResponse struct {
	Record    models.FeedbackRecord `json:"record"`
	Threshold float64               `json:"threshold"`
	Persisted bool                  `json:"persisted"`
}

// Record applies a verdict on a past detection. The threshold is retuned
// once enough feedback has accumulated.
func (h *FeedbackHandler) Record(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	r, err := toReading(req.Reading, time.Now())
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	rec := h.engine.RecordFeedback(r, *req.Correct)

	persisted := false
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		if err := h.store.Save(ctx, h.engine.InstallationID(), rec); err != nil {
			logger.FromContext(ctx).WithError(err).Error("Failed to persist feedback")
		} else {
			persisted = true
		}
	}

	c.JSON(http.StatusCreated, FeedbackResponse{
		Record:    rec,
		Threshold: h.engine.Threshold(),
		Persisted: persisted,
	})
}
