// Package prefs stores per-user UI preferences (theme, toast position,
// read "what's new" entries) as keyed values with change notification.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/castline-dev/castline/internal/models"
)

// Key names a preference
type Key string

const (
	KeyTheme         Key = "theme"
	KeyToastPosition Key = "toast_position"
	KeyReadUpdateIDs Key = "read_update_ids"
)

var (
	ErrUnknownKey   = errors.New("unknown preference key")
	ErrInvalidValue = errors.New("invalid preference value")
)

var defaults = map[Key]string{
	KeyTheme:         "system",
	KeyToastPosition: "bottom-right",
	KeyReadUpdateIDs: "[]",
}

var allowed = map[Key][]string{
	KeyTheme:         {"light", "dark", "system"},
	KeyToastPosition: {"top-left", "top-center", "top-right", "bottom-left", "bottom-center", "bottom-right"},
}

// Change is published after a preference is written
type Change struct {
	UserID string
	Key    Key
	Value  string
}

// Store reads and writes preferences and fans out change notifications
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger

	// markMu serialises read-list updates, which read then write
	markMu sync.Mutex

	mu     sync.Mutex
	subs   map[int]subscriber
	nextID int
}

type subscriber struct {
	userID string
	ch     chan Change
}

// NewStore creates a preference store
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "prefs").Logger(),
		subs:   make(map[int]subscriber),
	}
}

// Get returns every preference for a user, with defaults filled in
func (s *Store) Get(ctx context.Context, userID string) (map[Key]string, error) {
	var rows []models.Preference
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	out := make(map[Key]string, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for _, row := range rows {
		if _, known := defaults[Key(row.Key)]; known {
			out[Key(row.Key)] = row.Value
		}
	}
	return out, nil
}

// Set validates and stores a single preference, then notifies subscribers
func (s *Store) Set(ctx context.Context, userID string, key Key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}

	row := models.Preference{UserID: userID, Key: string(key), Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}

	s.publish(Change{UserID: userID, Key: key, Value: value})
	return nil
}

// MarkUpdateRead adds an update id to the user's read list
func (s *Store) MarkUpdateRead(ctx context.Context, userID, updateID string) error {
	s.markMu.Lock()
	defer s.markMu.Unlock()

	current, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	var ids []string
	if err := json.Unmarshal([]byte(current[KeyReadUpdateIDs]), &ids); err != nil {
		return fmt.Errorf("failed to decode read update ids: %w", err)
	}
	if slices.Contains(ids, updateID) {
		return nil
	}
	ids = append(ids, updateID)

	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode read update ids: %w", err)
	}
	return s.Set(ctx, userID, KeyReadUpdateIDs, string(encoded))
}

// Subscribe registers for one user's change notifications. Slow subscribers
// miss changes rather than blocking writers. Call cancel to unsubscribe.
func (s *Store) Subscribe(userID string, buffer int) (<-chan Change, func()) {
	ch := make(chan Change, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = subscriber{userID: userID, ch: ch}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub.ch)
		}
	}
	return ch, cancel
}

func (s *Store) publish(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.subs {
		if sub.userID != change.UserID {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			s.logger.Warn().Int("subscriber", id).Str("key", string(change.Key)).Msg("Dropped preference change for slow subscriber")
		}
	}
}

// Validate checks a value against the rules for its key
func Validate(key Key, value string) error {
	if _, ok := defaults[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	if key == KeyReadUpdateIDs {
		var ids []string
		if err := json.Unmarshal([]byte(value), &ids); err != nil {
			return fmt.Errorf("%w: %s must be a JSON array of strings", ErrInvalidValue, key)
		}
		return nil
	}

	if !slices.Contains(allowed[key], value) {
		return fmt.Errorf("%w: %s must be one of %v", ErrInvalidValue, key, allowed[key])
	}
	return nil
}
