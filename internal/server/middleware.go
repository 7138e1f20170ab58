package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/auth"
	"github.com/castline-dev/castline/internal/gate"
	"github.com/castline-dev/castline/internal/models"
	"github.com/castline-dev/castline/internal/onboarding"
)

const (
	bearerPrefix = "Bearer "

	authMethodBearer = "bearer"
	authMethodCookie = "cookie"

	// SessionCookieName carries the JWT for browser navigations
	SessionCookieName = "castline_session"

	// OriginParam carries the origin path on login redirects
	OriginParam = "from"

	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	gateSessionKey = "gate_session"
	userKey        = "user"
	sessionKey     = "session"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set(sessionKey, sessionData)
}

// GetSessionData returns the authenticated session, if any
func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok
}

// GetGateSession returns the session snapshot the gate evaluates
func GetGateSession(c *gin.Context) gate.Session {
	if v, ok := c.Get(gateSessionKey); ok {
		if s, ok := v.(gate.Session); ok {
			return s
		}
	}
	return gate.Session{}
}

// GetUser returns the resolved account for the request
func GetUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

// requestToken finds the session token, preferring the Authorization header
func requestToken(c *gin.Context) (string, string) {
	if header := c.GetHeader("Authorization"); header != "" {
		token, err := extractBearerToken(header)
		if err != nil {
			return "", ""
		}
		return token, authMethodBearer
	}
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie, authMethodCookie
	}
	return "", ""
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// ResolveSessionMiddleware builds the gate's session snapshot for every request.
// A missing or invalid token is unauthenticated. A user lookup that cannot
// finish within timeout, or fails for reasons other than a missing user,
// leaves the session loading rather than guessing either way.
func ResolveSessionMiddleware(db *gorm.DB, log zerolog.Logger, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, method := requestToken(c)
		if token == "" {
			c.Set(gateSessionKey, gate.Session{})
			c.Next()
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			log.Debug().Err(err).Msg("Rejected session token")
			c.Set(gateSessionKey, gate.Session{})
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		var user models.User
		err = db.WithContext(ctx).Where("id = ?", claims.UserID).First(&user).Error
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			log.Warn().Str("user_id", claims.UserID).Msg("Session user not found")
			c.Set(gateSessionKey, gate.Session{})
			c.Next()
			return
		default:
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("Session could not be resolved")
			c.Set(gateSessionKey, gate.Session{IsLoading: true})
			c.Next()
			return
		}

		c.Set(gateSessionKey, gate.Session{
			IsAuthenticated: true,
			User:            onboarding.GateUser(&user),
		})
		c.Set(userKey, &user)
		setSession(c, &auth.SessionData{
			UserID:     user.ID,
			Email:      user.Email,
			AuthMethod: method,
		})

		c.Next()
	}
}

// localOnboarding returns the cached onboarding flag for the request.
// Bearer clients keep no cookie cache, so the account flag stands in for it,
// the same value login writes into the cookie.
func localOnboarding(c *gin.Context) gate.OnboardingState {
	if sessionData, ok := GetSessionData(c); ok && sessionData.AuthMethod == authMethodBearer {
		if user, ok := GetUser(c); ok {
			return onboarding.StateFromUser(user)
		}
	}
	return onboarding.StateFromRequest(c.Request)
}

// protectedPage applies the gate to a navigation that needs a session
func (s *Server) protectedPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		d := s.gate.Protected(GetGateSession(c), localOnboarding(c), gate.NavigationIntent{
			CurrentPath: c.Request.URL.Path,
		})
		s.applyPageDecision(c, d)
	}
}

// publicPage applies the gate to a navigation hidden from signed-in visitors
func (s *Server) publicPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		d := s.gate.Public(GetGateSession(c), localOnboarding(c), gate.NavigationIntent{
			CurrentPath: c.Request.URL.Path,
			OriginPath:  SanitizePath(c.Query(OriginParam)),
		})
		s.applyPageDecision(c, d)
	}
}

func (s *Server) applyPageDecision(c *gin.Context, d gate.Decision) {
	s.logDecision(c, d)

	switch d.Outcome {
	case gate.OutcomeLoading:
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "loading"})
	case gate.OutcomeRedirect:
		c.Redirect(http.StatusFound, RedirectLocation(d))
		c.Abort()
	default:
		c.Next()
	}
}

// protectedAPI applies the gate to API calls. Endpoints that belong to the
// onboarding flow are evaluated as if on the onboarding page, so they stay
// reachable while onboarding is outstanding.
func (s *Server) protectedAPI(requireOnboarding bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := s.gate.Destinations().Onboarding
		if requireOnboarding {
			path = c.Request.URL.Path
		}

		d := s.gate.Protected(GetGateSession(c), localOnboarding(c), gate.NavigationIntent{
			CurrentPath: path,
		})
		s.logDecision(c, d)

		switch {
		case d.Outcome == gate.OutcomeLoading:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "loading"})
		case d.IsRedirect() && d.State == gate.StateUnauthenticated:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "redirect": d.Location})
		case d.IsRedirect():
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Onboarding required", "redirect": d.Location})
		default:
			c.Next()
		}
	}
}

func (s *Server) logDecision(c *gin.Context, d gate.Decision) {
	s.logger.Debug().
		Str("path", c.Request.URL.Path).
		Str("outcome", string(d.Outcome)).
		Str("state", string(d.State)).
		Str("location", d.Location).
		Msg("Gate decision")
}

// RedirectLocation renders a redirect decision as a URL, attaching the origin
func RedirectLocation(d gate.Decision) string {
	if d.Origin == "" {
		return d.Location
	}
	return d.Location + "?" + url.Values{OriginParam: {d.Origin}}.Encode()
}

// SanitizePath keeps only same-site absolute paths so origins cannot be
// used as open redirects. Anything else becomes empty.
func SanitizePath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return ""
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return p
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}
