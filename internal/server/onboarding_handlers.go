package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/castline-dev/castline/internal/gate"
	"github.com/castline-dev/castline/internal/onboarding"
)

// OnboardingResponse reports onboarding status and where to go next
type OnboardingResponse struct {
	onboarding.Status
	User     *UserDetail `json:"user,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

func onboardingState(completed bool) gate.OnboardingState {
	return gate.OnboardingState{HasCompletedOnboarding: completed}
}

// @Summary Onboarding status
// @Description Reports both the account flag and the cached local flag
// @Tags onboarding
// @Produce json
// @Security BearerAuth
// @Success 200 {object} OnboardingResponse
// @Router /api/onboarding [get]
func (s *Server) getOnboardingStatus(c *gin.Context) {
	user, ok := GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, OnboardingResponse{
		Status: onboarding.StatusFor(user, localOnboarding(c)),
		User:   userDetail(user),
	})
}

// @Summary Complete onboarding
// @Description Stores onboarding answers, marks the account onboarded and sets the cached flag
// @Tags onboarding
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body onboarding.Data true "Onboarding answers"
// @Success 200 {object} OnboardingResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/onboarding/complete [post]
func (s *Server) completeOnboarding(c *gin.Context) {
	sessionData, ok := GetSessionData(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req onboarding.Data
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.onboardingService.Complete(c.Request.Context(), sessionData.UserID, req)
	if err != nil {
		var verrs validator.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, onboarding.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to complete onboarding")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete onboarding"})
		}
		return
	}

	onboarding.WriteCookie(c.Writer, true, s.config.Auth.SecureCookie)

	c.JSON(http.StatusOK, OnboardingResponse{
		Status:   onboarding.StatusFor(user, onboardingState(true)),
		User:     userDetail(user),
		Redirect: s.gate.Destinations().Landing,
	})
}

// @Summary Reset onboarding
// @Description Sends the account back through onboarding and clears the cached flag
// @Tags onboarding
// @Produce json
// @Security BearerAuth
// @Success 200 {object} OnboardingResponse
// @Router /api/onboarding/reset [post]
func (s *Server) resetOnboarding(c *gin.Context) {
	sessionData, ok := GetSessionData(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := s.onboardingService.Reset(c.Request.Context(), sessionData.UserID); err != nil {
		if errors.Is(err, onboarding.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to reset onboarding")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset onboarding"})
		return
	}

	onboarding.WriteCookie(c.Writer, false, s.config.Auth.SecureCookie)

	user, ok := GetUser(c)
	if ok {
		completed := false
		user.OnboardingCompleted = &completed
	}

	c.JSON(http.StatusOK, OnboardingResponse{
		Status:   onboarding.StatusFor(user, onboardingState(false)),
		User:     userDetail(user),
		Redirect: s.gate.Destinations().Onboarding,
	})
}
