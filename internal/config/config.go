package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// Logging Configuration
	Logging LoggingConfig

	// HTTP Configuration
	HTTP HTTPConfig

	// Gate Configuration
	Gate GateConfig

	// Auth Configuration
	Auth AuthConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// HTTPConfig holds HTTP listener configuration
type HTTPConfig struct {
	Port           string
	AllowedOrigins []string
}

// GateConfig holds the redirect destinations used by the access gate
type GateConfig struct {
	LoginPath      string
	OnboardingPath string
	LandingPath    string

	// SessionResolveTimeout bounds the user lookup; past it the session is reported as loading
	SessionResolveTimeout time.Duration
}

// AuthConfig holds token settings
type AuthConfig struct {
	TokenTTL     time.Duration
	SecureCookie bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	resolveTimeout, err := durationEnv("SESSION_RESOLVE_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}

	tokenTTL, err := durationEnv("TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		Database: DatabaseConfig{
			URL: stringEnv("DATABASE_URL", "castline.sqlite"),
		},
		Redis: RedisConfig{
			Address: stringEnv("REDIS_ADDRESS", "localhost:6379"),
		},
		Logging: LoggingConfig{
			Level:  stringEnv("LOG_LEVEL", "info"),
			Format: stringEnv("LOG_FORMAT", "json"),
		},
		HTTP: HTTPConfig{
			Port:           stringEnv("HTTP_PORT", "8080"),
			AllowedOrigins: listEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Gate: GateConfig{
			LoginPath:             stringEnv("GATE_LOGIN_PATH", "/login"),
			OnboardingPath:        stringEnv("GATE_ONBOARDING_PATH", "/onboarding"),
			LandingPath:           stringEnv("GATE_LANDING_PATH", "/dashboard"),
			SessionResolveTimeout: resolveTimeout,
		},
		Auth: AuthConfig{
			TokenTTL:     tokenTTL,
			SecureCookie: stringEnv("SECURE_COOKIES", "false") == "true",
		},
	}, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
