// Package onboarding owns the post-signup setup flow: recording a user's
// answers, flipping the account's completion flag, and maintaining the
// locally cached completion cookie the access gate falls back on.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/gate"
	"github.com/castline-dev/castline/internal/models"
)

// CookieName holds the cached completion flag ("1" when completed)
const CookieName = "castline_onboarded"

const cookieMaxAge = 365 * 24 * 60 * 60

var ErrUserNotFound = errors.New("user not found")

// Data is what the onboarding flow collects
type Data struct {
	CompanyName string   `json:"companyName" validate:"required,max=120"`
	Industry    string   `json:"industry" validate:"required,oneof=ecommerce saas agency nonprofit education healthcare finance other"`
	TeamSize    string   `json:"teamSize" validate:"required,oneof=1-10 11-50 51-200 201+"`
	Goals       []string `json:"goals" validate:"min=1,dive,required,max=80"`
	Channels    []string `json:"channels" validate:"min=1,dive,oneof=email sms push"`
}

// Status summarises both onboarding sources for a user
type Status struct {
	UserNeedsOnboarding    bool `json:"user_needs_onboarding"`
	HasCompletedOnboarding bool `json:"has_completed_onboarding"`
	NeedsOnboarding        bool `json:"needs_onboarding"`
}

// Service completes and resets onboarding
type Service struct {
	db        *gorm.DB
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewService creates a new onboarding service
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:        db,
		validator: validator.New(),
		logger:    logger.With().Str("component", "onboarding_service").Logger(),
	}
}

// Validate checks onboarding answers
func (s *Service) Validate(data Data) error {
	return s.validator.Struct(&data)
}

// Complete stores the answers and marks the account as onboarded
func (s *Service) Complete(ctx context.Context, userID string, data Data) (*models.User, error) {
	if err := s.Validate(data); err != nil {
		return nil, err
	}

	var user models.User
	if err := models.FindByID(s.db.WithContext(ctx), userID, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	completed := true
	user.OnboardingCompleted = &completed
	user.UserType = models.UserTypeExisting
	user.CompanyName = data.CompanyName
	user.Industry = data.Industry
	user.TeamSize = data.TeamSize
	user.Goals = data.Goals
	user.Channels = data.Channels

	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to save onboarding: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("industry", data.Industry).Msg("Onboarding completed")
	return &user, nil
}

// Reset sends a user back through onboarding
func (s *Service) Reset(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("onboarding_completed", false)
	if res.Error != nil {
		return fmt.Errorf("failed to reset onboarding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info().Str("user_id", userID).Msg("Onboarding reset")
	return nil
}

// GateUser converts an account into the gate's view of it
func GateUser(u *models.User) *gate.User {
	if u == nil {
		return nil
	}
	userType := gate.UserTypeExisting
	if u.UserType == models.UserTypeNew {
		userType = gate.UserTypeNew
	}
	return &gate.User{
		ID:                  u.ID,
		UserType:            userType,
		OnboardingCompleted: u.OnboardingCompleted,
	}
}

// StatusFor reports the onboarding status of a user given the cached flag
func StatusFor(u *models.User, cached gate.OnboardingState) Status {
	gu := GateUser(u)
	if gu == nil {
		return Status{HasCompletedOnboarding: cached.HasCompletedOnboarding}
	}
	return Status{
		UserNeedsOnboarding:    gate.UserNeedsOnboarding(*gu),
		HasCompletedOnboarding: cached.HasCompletedOnboarding,
		NeedsOnboarding:        gate.NeedsOnboarding(*gu, cached),
	}
}

// StateFromRequest reads the cached completion flag from the request cookie
func StateFromRequest(r *http.Request) gate.OnboardingState {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return gate.OnboardingState{}
	}
	return gate.OnboardingState{HasCompletedOnboarding: c.Value == "1"}
}

// StateFromUser derives the cached flag from the account, for clients that
// keep no cookie
func StateFromUser(u *models.User) gate.OnboardingState {
	return gate.OnboardingState{
		HasCompletedOnboarding: u != nil && u.OnboardingCompleted != nil && *u.OnboardingCompleted,
	}
}

// WriteCookie mirrors the account flag into the cached completion cookie
func WriteCookie(w http.ResponseWriter, completed, secure bool) {
	value, maxAge := "1", cookieMaxAge
	if !completed {
		value, maxAge = "", -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
