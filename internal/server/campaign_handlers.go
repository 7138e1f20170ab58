package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/castline-dev/castline/internal/campaigns"
)

func (s *Server) campaignError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
	case errors.Is(err, campaigns.ErrSegmentNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Segment not found"})
	case errors.Is(err, campaigns.ErrNotEditable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, campaigns.ErrInvalidRecurrence), errors.Is(err, campaigns.ErrInvalidSchedule):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error().Err(err).Str("campaign_id", c.Param("id")).Msg(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

// @Summary List campaigns
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Success 200 {array} models.Campaign
// @Router /api/campaigns [get]
func (s *Server) listCampaigns(c *gin.Context) {
	list, err := s.campaignsService.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		s.campaignError(c, err, "Failed to list campaigns")
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Create campaign
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body campaigns.Input true "Campaign"
// @Success 201 {object} models.Campaign
// @Failure 400 {object} map[string]interface{}
// @Router /api/campaigns [post]
func (s *Server) createCampaign(c *gin.Context) {
	var req campaigns.Input
	if !s.bindJSON(c, &req) {
		return
	}

	sessionData, _ := GetSessionData(c)
	campaign, err := s.campaignsService.Create(c.Request.Context(), req, sessionData.UserID)
	if err != nil {
		s.campaignError(c, err, "Failed to create campaign")
		return
	}

	s.logger.Info().
		Str("campaign_id", campaign.ID).
		Str("channel", campaign.Channel).
		Str("created_by", sessionData.UserID).
		Msg("Campaign created")

	c.JSON(http.StatusCreated, campaign)
}

// @Router /api/campaigns/{id} [get]
func (s *Server) getCampaign(c *gin.Context) {
	campaign, err := s.campaignsService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.campaignError(c, err, "Failed to get campaign")
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// @Summary Update campaign
// @Description Edits a draft or scheduled campaign
// @Tags campaigns
// @Router /api/campaigns/{id} [put]
func (s *Server) updateCampaign(c *gin.Context) {
	var req campaigns.Input
	if !s.bindJSON(c, &req) {
		return
	}

	campaign, err := s.campaignsService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.campaignError(c, err, "Failed to update campaign")
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// @Router /api/campaigns/{id} [delete]
func (s *Server) deleteCampaign(c *gin.Context) {
	if err := s.campaignsService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.campaignError(c, err, "Failed to delete campaign")
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Schedule campaign
// @Description Sends now, at a given time, or on a cron recurrence
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Param request body campaigns.ScheduleInput true "Schedule"
// @Success 200 {object} models.Campaign
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/campaigns/{id}/schedule [post]
func (s *Server) scheduleCampaign(c *gin.Context) {
	var req campaigns.ScheduleInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	campaign, err := s.campaignsService.Schedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.campaignError(c, err, "Failed to schedule campaign")
		return
	}

	s.logger.Info().
		Str("campaign_id", campaign.ID).
		Str("recurrence", campaign.Recurrence).
		Msg("Campaign scheduled")

	c.JSON(http.StatusOK, campaign)
}

// @Router /api/campaigns/{id}/unschedule [post]
func (s *Server) unscheduleCampaign(c *gin.Context) {
	campaign, err := s.campaignsService.Unschedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.campaignError(c, err, "Failed to unschedule campaign")
		return
	}
	c.JSON(http.StatusOK, campaign)
}
