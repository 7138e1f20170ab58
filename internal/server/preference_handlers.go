package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/castline-dev/castline/internal/prefs"
)

func (s *Server) prefsError(c *gin.Context, err error, message string) {
	if errors.Is(err, prefs.ErrUnknownKey) || errors.Is(err, prefs.ErrInvalidValue) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error().Err(err).Msg(message)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

// @Summary Get preferences
// @Tags preferences
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /api/preferences [get]
func (s *Server) getPreferences(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	values, err := s.prefsStore.Get(c.Request.Context(), sessionData.UserID)
	if err != nil {
		s.prefsError(c, err, "Failed to load preferences")
		return
	}
	c.JSON(http.StatusOK, values)
}

// @Summary Update preferences
// @Description Writes every given key. Nothing is written if any key is invalid.
// @Tags preferences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body map[string]string true "Preferences"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]interface{}
// @Router /api/preferences [put]
func (s *Server) updatePreferences(c *gin.Context) {
	var req map[prefs.Key]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for key, value := range req {
		if err := prefs.Validate(key, value); err != nil {
			s.prefsError(c, err, "Invalid preference")
			return
		}
	}

	sessionData, _ := GetSessionData(c)
	ctx := c.Request.Context()
	for key, value := range req {
		if err := s.prefsStore.Set(ctx, sessionData.UserID, key, value); err != nil {
			s.prefsError(c, err, "Failed to save preferences")
			return
		}
	}

	values, err := s.prefsStore.Get(ctx, sessionData.UserID)
	if err != nil {
		s.prefsError(c, err, "Failed to load preferences")
		return
	}
	c.JSON(http.StatusOK, values)
}

// @Router /api/preferences/read-updates/{id} [post]
func (s *Server) markUpdateRead(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	if err := s.prefsStore.MarkUpdateRead(c.Request.Context(), sessionData.UserID, c.Param("id")); err != nil {
		s.prefsError(c, err, "Failed to mark update read")
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Preference changes
// @Description Server-sent events for the caller's preference writes, from any tab or device
// @Tags preferences
// @Produce text/event-stream
// @Security BearerAuth
// @Router /api/preferences/events [get]
func (s *Server) streamPreferences(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	// the stream outlives the server's write timeout
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug().Err(err).Msg("Could not clear write deadline for preference stream")
	}

	changes, cancel := s.prefsStore.Subscribe(sessionData.UserID, 16)
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case change, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("preference", gin.H{"key": change.Key, "value": change.Value})
			return true
		}
	})
}
