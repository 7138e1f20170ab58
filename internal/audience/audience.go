// Package audience manages contacts, tags and segments
package audience

import (
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/filters"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Service handles contact, tag and segment persistence
type Service struct {
	db     *gorm.DB
	schema *filters.Schema
	logger zerolog.Logger
}

// NewService creates a new audience service
func NewService(db *gorm.DB, schema *filters.Schema, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		schema: schema,
		logger: logger.With().Str("component", "audience_service").Logger(),
	}
}

// Schema returns the filter schema segments are validated against
func (s *Service) Schema() *filters.Schema {
	return s.schema
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
