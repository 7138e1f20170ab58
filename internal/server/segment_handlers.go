package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/castline-dev/castline/internal/audience"
)

// SetMembersRequest replaces a segment's static members
type SetMembersRequest struct {
	ContactIDs []string `json:"contactIds" validate:"dive,required"`
}

// @Summary Segment filter configuration
// @Description Fields, value types and operators the segment builder offers
// @Tags segments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} filters.Schema
// @Router /api/segments/filter-config [get]
func (s *Server) getFilterConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.audienceService.Schema())
}

// @Summary List segments
// @Tags segments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} audience.SegmentSummary
// @Router /api/segments [get]
func (s *Server) listSegments(c *gin.Context) {
	segments, err := s.audienceService.ListSegments(c.Request.Context())
	if err != nil {
		s.audienceError(c, err, "Failed to list segments")
		return
	}
	c.JSON(http.StatusOK, segments)
}

// @Summary Create segment
// @Description The filter is validated against the filter configuration
// @Tags segments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body audience.SegmentInput true "Segment"
// @Success 201 {object} models.Segment
// @Failure 400 {object} map[string]interface{}
// @Router /api/segments [post]
func (s *Server) createSegment(c *gin.Context) {
	var req audience.SegmentInput
	if !s.bindJSON(c, &req) {
		return
	}

	sessionData, _ := GetSessionData(c)
	segment, err := s.audienceService.CreateSegment(c.Request.Context(), req, sessionData.UserID)
	if err != nil {
		s.audienceError(c, err, "Failed to create segment")
		return
	}

	s.logger.Info().Str("segment_id", segment.ID).Str("created_by", sessionData.UserID).Msg("Segment created")
	c.JSON(http.StatusCreated, segment)
}

// @Router /api/segments/{id} [get]
func (s *Server) getSegment(c *gin.Context) {
	segment, err := s.audienceService.GetSegment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.audienceError(c, err, "Failed to get segment")
		return
	}
	c.JSON(http.StatusOK, segment)
}

// @Router /api/segments/{id} [put]
func (s *Server) updateSegment(c *gin.Context) {
	var req audience.SegmentInput
	if !s.bindJSON(c, &req) {
		return
	}

	segment, err := s.audienceService.UpdateSegment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.audienceError(c, err, "Failed to update segment")
		return
	}
	c.JSON(http.StatusOK, segment)
}

// @Router /api/segments/{id} [delete]
func (s *Server) deleteSegment(c *gin.Context) {
	if err := s.audienceService.DeleteSegment(c.Request.Context(), c.Param("id")); err != nil {
		s.audienceError(c, err, "Failed to delete segment")
		return
	}
	c.Status(http.StatusNoContent)
}

// @Router /api/segments/{id}/members [put]
func (s *Server) setSegmentMembers(c *gin.Context) {
	var req SetMembersRequest
	if !s.bindJSON(c, &req) {
		return
	}

	id := c.Param("id")
	if err := s.audienceService.SetMembers(c.Request.Context(), id, req.ContactIDs); err != nil {
		s.audienceError(c, err, "Failed to set segment members")
		return
	}

	count, err := s.audienceService.MemberCount(c.Request.Context(), id)
	if err != nil {
		s.audienceError(c, err, "Failed to count segment members")
		return
	}
	c.JSON(http.StatusOK, gin.H{"member_count": count})
}
