package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"occupancy-status-backend/internal/model"
	"occupancy-status-backend/internal/occupancy"
)

// View names understood by the presentation layer.
const (
	ViewOccupied   = "occupied"
	ViewUnoccupied = "unoccupied"
)

// GetOccupancy handles GET /api/occupancy. The verdict is recomputed on every call.
func (h *Handler) GetOccupancy(c *gin.Context) {
	c.JSON(http.StatusOK, toResponse(h.tracker.Status()))
}

// GetView handles GET /api/view: which page the UI should render.
func (h *Handler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"view": ViewName(h.tracker.Status())})
}

// Healthz is a liveness probe.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ViewName maps a verdict to the view the UI should show.
func ViewName(st occupancy.Status) string {
	if st.Occupied {
		return ViewOccupied
	}
	return ViewUnoccupied
}

func toResponse(st occupancy.Status) model.OccupancyStatus {
	resp := model.OccupancyStatus{
		Occupied:       st.Occupied,
		State:          string(st.State),
		Motion:         st.Record.LastSignal,
		TimeoutSeconds: int(st.Timeout.Seconds()),
	}
	if st.Record.LastReportTime != nil {
		t := st.Record.LastReportTime.UTC()
		resp.LastReportTime = &t
	}
	return resp
}
