package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emsd/school-billing-api/internal/service"
	"github.com/emsd/school-billing-api/pkg/response"
)

// DashboardHandler exposes the aggregated dashboard endpoint.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats godoc
// @Summary Dashboard statistics
// @Description Aggregate enrollment and billing figures, cached briefly
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
