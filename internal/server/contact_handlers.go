package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/castline-dev/castline/internal/audience"
	"github.com/castline-dev/castline/internal/filters"
	"github.com/castline-dev/castline/internal/models"
)

// ContactListResponse is a page of contacts
type ContactListResponse struct {
	Contacts []models.Contact `json:"contacts"`
	Total    int64            `json:"total"`
}

// AssignTagsRequest attaches tags to a contact
type AssignTagsRequest struct {
	TagIDs []string `json:"tagIds" validate:"required,min=1,dive,required"`
}

func (s *Server) audienceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, audience.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, audience.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, filters.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error().Err(err).Str("id", c.Param("id")).Msg(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

// @Summary List contacts
// @Tags contacts
// @Produce json
// @Security BearerAuth
// @Param q query string false "Search email and name"
// @Param status query string false "Contact status"
// @Param tag query string false "Tag ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} ContactListResponse
// @Router /api/contacts [get]
func (s *Server) listContacts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	contacts, total, err := s.audienceService.ListContacts(c.Request.Context(), audience.ContactQuery{
		Search: c.Query("q"),
		Status: c.Query("status"),
		TagID:  c.Query("tag"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.audienceError(c, err, "Failed to list contacts")
		return
	}

	c.JSON(http.StatusOK, ContactListResponse{Contacts: contacts, Total: total})
}

// @Summary Create contact
// @Tags contacts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body audience.ContactInput true "Contact"
// @Success 201 {object} models.Contact
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/contacts [post]
func (s *Server) createContact(c *gin.Context) {
	var req audience.ContactInput
	if !s.bindJSON(c, &req) {
		return
	}

	contact, err := s.audienceService.CreateContact(c.Request.Context(), req)
	if err != nil {
		s.audienceError(c, err, "Failed to create contact")
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// @Router /api/contacts/{id} [get]
func (s *Server) getContact(c *gin.Context) {
	contact, err := s.audienceService.GetContact(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.audienceError(c, err, "Failed to get contact")
		return
	}
	c.JSON(http.StatusOK, contact)
}

// @Router /api/contacts/{id} [put]
func (s *Server) updateContact(c *gin.Context) {
	var req audience.ContactInput
	if !s.bindJSON(c, &req) {
		return
	}

	contact, err := s.audienceService.UpdateContact(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.audienceError(c, err, "Failed to update contact")
		return
	}
	c.JSON(http.StatusOK, contact)
}

// @Router /api/contacts/{id} [delete]
func (s *Server) deleteContact(c *gin.Context) {
	if err := s.audienceService.DeleteContact(c.Request.Context(), c.Param("id")); err != nil {
		s.audienceError(c, err, "Failed to delete contact")
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Tag a contact
// @Tags contacts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contact ID"
// @Param request body AssignTagsRequest true "Tags"
// @Success 200 {object} models.Contact
// @Router /api/contacts/{id}/tags [post]
func (s *Server) assignTags(c *gin.Context) {
	var req AssignTagsRequest
	if !s.bindJSON(c, &req) {
		return
	}

	contact, err := s.audienceService.AssignTags(c.Request.Context(), c.Param("id"), req.TagIDs)
	if err != nil {
		s.audienceError(c, err, "Failed to assign tags")
		return
	}
	c.JSON(http.StatusOK, contact)
}

// @Router /api/contacts/{id}/tags/{tagId} [delete]
func (s *Server) removeTag(c *gin.Context) {
	if err := s.audienceService.RemoveTag(c.Request.Context(), c.Param("id"), c.Param("tagId")); err != nil {
		s.audienceError(c, err, "Failed to remove tag")
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List tags
// @Tags tags
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Tag
// @Router /api/tags [get]
func (s *Server) listTags(c *gin.Context) {
	tags, err := s.audienceService.ListTags(c.Request.Context())
	if err != nil {
		s.audienceError(c, err, "Failed to list tags")
		return
	}
	c.JSON(http.StatusOK, tags)
}

// @Router /api/tags [post]
func (s *Server) createTag(c *gin.Context) {
	var req audience.TagInput
	if !s.bindJSON(c, &req) {
		return
	}

	tag, err := s.audienceService.CreateTag(c.Request.Context(), req)
	if err != nil {
		s.audienceError(c, err, "Failed to create tag")
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// @Router /api/tags/{id} [delete]
func (s *Server) deleteTag(c *gin.Context) {
	if err := s.audienceService.DeleteTag(c.Request.Context(), c.Param("id")); err != nil {
		s.audienceError(c, err, "Failed to delete tag")
		return
	}
	c.Status(http.StatusNoContent)
}
