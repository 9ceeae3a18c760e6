package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/models"
	"github.com/OldStager01/leakwatch/pkg/validation"
)

// AlertStore is the alert history, backed by the database or kept in
// memory when none is configured.
type AlertStore interface {
	List(ctx context.Context, installationID string, limit int) ([]*models.Alert, error)
	UpdateStatus(ctx context.Context, id string, status models.AlertStatus) error
}

type AlertHandler struct {
	store          AlertStore
	installationID string
	limits         Limits
}

func NewAlertHandler(store AlertStore, installationID string, limits Limits) *AlertHandler {
	return &AlertHandler{store: store, installationID: installationID, limits: limits.withDefaults()}
}

type AlertResponse struct {
	*models.Alert
	Title string `json:"title"`
}

type UpdateAlertStatusRequest struct {
	Status models.AlertStatus `json:"status" binding:"required"`
}

// List returns the newest alerts, most recent first. Deleted alerts are
// never listed.
func (h *AlertHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	alerts, err := h.store.List(ctx, h.installationID, h.limits.parseLimit(c))
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to list alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}

	out := make([]AlertResponse, len(alerts))
	for i, a := range alerts {
		out[i] = AlertResponse{Alert: a, Title: a.Title()}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": out, "count": len(out)})
}

func (h *AlertHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateAlertID(id); err != nil {
		badRequest(c, err.Error())
		return
	}

	var req UpdateAlertStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if !req.Status.Valid() {
		badRequest(c, "status must be one of nueva, revisada, eliminada")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.store.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, models.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		logger.FromContext(ctx).WithError(err).Error("Failed to update alert status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update alert"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}
