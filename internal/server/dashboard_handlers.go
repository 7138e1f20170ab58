package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Dashboard metrics
// @Description Audience and campaign totals for the dashboard home
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} metrics.Dashboard
// @Router /api/dashboard/metrics [get]
func (s *Server) getDashboardMetrics(c *gin.Context) {
	d, err := s.metricsService.Dashboard(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute dashboard metrics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute metrics"})
		return
	}
	c.JSON(http.StatusOK, d)
}
