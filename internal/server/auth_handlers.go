package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/auth"
	"github.com/castline-dev/castline/internal/models"
	"github.com/castline-dev/castline/internal/onboarding"
)

// SignupRequest represents a new account request
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token      string            `json:"token"`
	User       *UserDetail       `json:"user"`
	Onboarding onboarding.Status `json:"onboarding"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	UserType            string    `json:"user_type"`
	OnboardingCompleted *bool     `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
}

func userDetail(u *models.User) *UserDetail {
	if u == nil {
		return nil
	}
	return &UserDetail{
		ID:                  u.ID,
		Email:               u.Email,
		Name:                u.Name,
		UserType:            u.UserType,
		OnboardingCompleted: u.OnboardingCompleted,
		CreatedAt:           u.CreatedAt,
	}
}

// bindJSON decodes and validates a request body, answering 400 on failure
func (s *Server) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if err := s.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// startSession issues a token and sets the session and onboarding cookies
func (s *Server) startSession(c *gin.Context, user *models.User) (string, bool) {
	token, err := auth.GenerateToken(user.ID, user.Email, s.config.Auth.TokenTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return "", false
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.config.Auth.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.config.Auth.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	// The cached flag follows the account on every sign-in
	onboarding.WriteCookie(c.Writer, user.OnboardingCompleted != nil && *user.OnboardingCompleted, s.config.Auth.SecureCookie)

	return token, true
}

// @Summary Sign up
// @Description Creates an account. New accounts start in onboarding.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup request"
// @Success 201 {object} LoginResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/auth/signup [post]
func (s *Server) signup(c *gin.Context) {
	var req SignupRequest
	if !s.bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to check email")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         req.Name,
		UserType:     models.UserTypeNew,
	}
	if err := s.db.Create(user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	token, ok := s.startSession(c, user)
	if !ok {
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User signed up")

	c.JSON(http.StatusCreated, LoginResponse{
		Token:      token,
		User:       userDetail(user),
		Onboarding: onboarding.StatusFor(user, onboardingState(false)),
	})
}

// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/login [post]
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if !s.bindJSON(c, &req) {
		return
	}

	var user models.User
	if err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		respondWithError(c, s.logger.With().Str("user_id", user.ID).Logger(), http.StatusUnauthorized, err, "Invalid email or password")
		return
	}

	token, ok := s.startSession(c, &user)
	if !ok {
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")

	completed := user.OnboardingCompleted != nil && *user.OnboardingCompleted
	c.JSON(http.StatusOK, LoginResponse{
		Token:      token,
		User:       userDetail(&user),
		Onboarding: onboarding.StatusFor(&user, onboardingState(completed)),
	})
}

// @Summary Logout
// @Description Clears the session cookie. The cached onboarding flag is kept.
// @Tags auth
// @Success 204
// @Router /api/auth/logout [post]
func (s *Server) logout(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.Auth.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	if sessionData, ok := GetSessionData(c); ok {
		s.logger.Info().Str("user_id", sessionData.UserID).Msg("User logged out")
	}

	c.Status(http.StatusNoContent)
}

// @Summary Get current user
// @Description Get information about the currently authenticated user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/me [get]
func (s *Server) getCurrentUser(c *gin.Context) {
	user, ok := GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, userDetail(user))
}
