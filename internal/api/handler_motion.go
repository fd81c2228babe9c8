package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"occupancy-status-backend/internal/model"
	"occupancy-status-backend/internal/mw"
)

// PostMotion handles POST /motion: it records the reported motion value.
func (h *Handler) PostMotion(c *gin.Context) {
	var req model.MotionReport
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "body must be a JSON object with a boolean \"motion\" field"})
		return
	}

	rec := h.tracker.Report(*req.Motion)
	mw.Logger(c).Debug("motion report accepted", zap.Bool("motion", rec.LastSignal))

	c.JSON(http.StatusOK, model.MotionAck{
		Success:    true,
		Motion:     rec.LastSignal,
		ObservedAt: rec.LastReportTime.UTC(),
	})
}
