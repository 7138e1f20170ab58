// Package server
//
// @title Castline API
// @version 1.0
// @description Marketing dashboard API and access gate
// @host localhost:8080
// @BasePath /
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/audience"
	"github.com/castline-dev/castline/internal/auth"
	"github.com/castline-dev/castline/internal/campaigns"
	"github.com/castline-dev/castline/internal/config"
	"github.com/castline-dev/castline/internal/database"
	"github.com/castline-dev/castline/internal/filters"
	"github.com/castline-dev/castline/internal/gate"
	"github.com/castline-dev/castline/internal/metrics"
	"github.com/castline-dev/castline/internal/models"
	"github.com/castline-dev/castline/internal/onboarding"
	"github.com/castline-dev/castline/internal/prefs"
)

// Server represents the HTTP server
type Server struct {
	router            *gin.Engine
	db                *gorm.DB
	config            *config.Config
	logger            zerolog.Logger
	validator         *validator.Validate
	gate              *gate.Gate
	enqueuer          campaigns.Enqueuer
	audienceService   *audience.Service
	campaignsService  *campaigns.Service
	onboardingService *onboarding.Service
	metricsService    *metrics.Service
	prefsStore        *prefs.Store
	version           string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	db, err := database.Open(cfg.Database.URL, zlog)
	if err != nil {
		return nil, err
	}

	// Initialize Asynq client for enqueueing tasks
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})

	return newServer(cfg, zlog, version, db, asynqClient)
}

func newServer(cfg *config.Config, zlog zerolog.Logger, version string, db *gorm.DB, enqueuer campaigns.Enqueuer) (*Server, error) {
	if err := initJWT(db, zlog); err != nil {
		return nil, err
	}

	validate := validator.New()

	server := &Server{
		db:        db,
		config:    cfg,
		logger:    zlog,
		validator: validate,
		gate: gate.New(gate.Destinations{
			Login:      cfg.Gate.LoginPath,
			Onboarding: cfg.Gate.OnboardingPath,
			Landing:    cfg.Gate.LandingPath,
		}),
		enqueuer:          enqueuer,
		audienceService:   audience.NewService(db, filters.Default(), zlog),
		campaignsService:  campaigns.NewService(db, enqueuer, zlog),
		onboardingService: onboarding.NewService(db, zlog),
		metricsService:    metrics.NewService(db),
		prefsStore:        prefs.NewStore(db, zlog),
		version:           version,
	}

	server.setupRouter()

	return server, nil
}

// initJWT loads the signing secret from the singleton config row, creating it on first start
func initJWT(db *gorm.DB, zlog zerolog.Logger) error {
	var cfg models.Config
	err := db.First(&cfg).Error
	if err == nil {
		auth.InitializeJWT(cfg.JWTSecret)
		zlog.Debug().Msg("Loaded JWT secret from database")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load config: %w", err)
	}

	secret, err := auth.GenerateSecret()
	if err != nil {
		return err
	}
	if err := db.Create(&models.Config{JWTSecret: secret}).Error; err != nil {
		return fmt.Errorf("failed to persist config: %w", err)
	}
	auth.InitializeJWT(secret)
	zlog.Info().Msg("Generated new JWT secret")
	return nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	s.router.SetHTMLTemplate(pageTemplate)

	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.HTTP.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (no session needed)
	s.router.GET("/health", s.healthCheck)

	// Everything below sees a resolved session
	app := s.router.Group("/")
	app.Use(ResolveSessionMiddleware(s.db, s.logger, s.config.Gate.SessionResolveTimeout))

	// Pages hidden from signed-in visitors
	public := app.Group("/")
	public.Use(s.publicPage())
	{
		public.GET("/login", s.page("login"))
		public.GET("/signup", s.page("signup"))
	}

	// Pages requiring a session and, outside /onboarding, completed onboarding
	protected := app.Group("/")
	protected.Use(s.protectedPage())
	{
		protected.GET("/", s.redirectToLanding)
		protected.GET(s.gate.Destinations().Onboarding, s.page("onboarding"))
		for _, name := range []string{"dashboard", "campaigns", "inbox", "contacts", "segments", "analytics", "settings"} {
			protected.GET("/"+name, s.page(name))
		}
	}

	api := app.Group("/api")
	{
		api.GET("/gate", s.evaluateGate)
		api.POST("/auth/signup", s.signup)
		api.POST("/auth/login", s.login)
		api.POST("/auth/logout", s.logout)
	}

	// Authenticated endpoints usable while onboarding is outstanding
	session := api.Group("")
	session.Use(s.protectedAPI(false))
	{
		session.GET("/auth/me", s.getCurrentUser)

		session.GET("/onboarding", s.getOnboardingStatus)
		session.POST("/onboarding/complete", s.completeOnboarding)
		session.POST("/onboarding/reset", s.resetOnboarding)

		session.GET("/preferences", s.getPreferences)
		session.PUT("/preferences", s.updatePreferences)
		session.GET("/preferences/events", s.streamPreferences)
		session.POST("/preferences/read-updates/:id", s.markUpdateRead)
	}

	// Dashboard data endpoints
	data := api.Group("")
	data.Use(s.protectedAPI(true))
	{
		data.GET("/dashboard/metrics", s.getDashboardMetrics)

		data.GET("/campaigns", s.listCampaigns)
		data.POST("/campaigns", s.createCampaign)
		data.GET("/campaigns/:id", s.getCampaign)
		data.PUT("/campaigns/:id", s.updateCampaign)
		data.DELETE("/campaigns/:id", s.deleteCampaign)
		data.POST("/campaigns/:id/schedule", s.scheduleCampaign)
		data.POST("/campaigns/:id/unschedule", s.unscheduleCampaign)

		data.GET("/contacts", s.listContacts)
		data.POST("/contacts", s.createContact)
		data.GET("/contacts/:id", s.getContact)
		data.PUT("/contacts/:id", s.updateContact)
		data.DELETE("/contacts/:id", s.deleteContact)
		data.POST("/contacts/:id/tags", s.assignTags)
		data.DELETE("/contacts/:id/tags/:tagId", s.removeTag)

		data.GET("/tags", s.listTags)
		data.POST("/tags", s.createTag)
		data.DELETE("/tags/:id", s.deleteTag)

		data.GET("/segments/filter-config", s.getFilterConfig)
		data.GET("/segments", s.listSegments)
		data.POST("/segments", s.createSegment)
		data.GET("/segments/:id", s.getSegment)
		data.PUT("/segments/:id", s.updateSegment)
		data.DELETE("/segments/:id", s.deleteSegment)
		data.PUT("/segments/:id/members", s.setSegmentMembers)
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("HTTP request")
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "castline-api",
		"version":   s.version,
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	port := ":" + s.config.HTTP.Port

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.logger.Info().Str("port", port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	if closer, ok := s.enqueuer.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing Asynq client")
		} else {
			s.logger.Info().Msg("Asynq client closed successfully")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")

	// Close database connection to flush WAL writes
	if sqlDB, err := s.db.DB(); err == nil {
		s.logger.Info().Msg("Closing database connection...")
		if err := sqlDB.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		} else {
			s.logger.Info().Msg("Database closed successfully")
		}
	}

	return nil
}
