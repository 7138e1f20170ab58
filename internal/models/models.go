package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/filters"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Config represents the global configuration for the deployment
// This is a singleton model (only one row should exist)
type Config struct {
	BaseModel
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"` // Auto-generated on first start (64 hex chars)
}

// User account types
const (
	UserTypeNew      = "newUser"
	UserTypeExisting = "existingUser"
)

// User represents a dashboard account
type User struct {
	BaseModel
	Email        string `json:"email" gorm:"unique;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	Name         string `json:"name"`
	UserType     string `json:"user_type" gorm:"not null;default:newUser"`

	// OnboardingCompleted stays NULL until onboarding is finished or explicitly reset
	OnboardingCompleted *bool `json:"onboarding_completed"`

	// Onboarding answers
	CompanyName string   `json:"company_name"`
	Industry    string   `json:"industry"`
	TeamSize    string   `json:"team_size"`
	Goals       []string `json:"goals" gorm:"serializer:json"`
	Channels    []string `json:"channels" gorm:"serializer:json"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Contact status values
const (
	ContactStatusSubscribed   = "subscribed"
	ContactStatusUnsubscribed = "unsubscribed"
	ContactStatusBounced      = "bounced"
)

// Contact represents an audience member campaigns are delivered to
type Contact struct {
	BaseModel
	Email          string            `json:"email" gorm:"unique;not null"`
	FirstName      string            `json:"first_name"`
	LastName       string            `json:"last_name"`
	Phone          string            `json:"phone"`
	Status         string            `json:"status" gorm:"not null;default:subscribed"`
	Attributes     map[string]string `json:"attributes" gorm:"serializer:json"`
	LastActivityAt *time.Time        `json:"last_activity_at"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"autoUpdateTime"`

	Tags []Tag `json:"tags,omitempty" gorm:"many2many:contact_tags;constraint:OnDelete:CASCADE"`
}

// Tag labels contacts
type Tag struct {
	BaseModel
	Name  string `json:"name" gorm:"unique;not null"`
	Color string `json:"color"`
}

// Segment is a saved audience filter
type Segment struct {
	BaseModel
	Name        string        `json:"name" gorm:"not null"`
	Description string        `json:"description"`
	Filter      filters.Group `json:"filter" gorm:"serializer:json"`
	CreatedByID string        `json:"created_by_id"`
	UpdatedAt   time.Time     `json:"updated_at" gorm:"autoUpdateTime"`

	// Members is a manually curated contact list used for delivery counts
	Members []Contact `json:"-" gorm:"many2many:segment_contacts;constraint:OnDelete:CASCADE"`
}

// Campaign channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
)

// Campaign statuses
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSending   = "sending"
	CampaignStatusSent      = "sent"
)

// Campaign represents an outbound message to a segment
type Campaign struct {
	BaseModel
	Name        string     `json:"name" gorm:"not null"`
	Channel     string     `json:"channel" gorm:"not null;default:email"`
	Status      string     `json:"status" gorm:"not null;default:draft"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body" gorm:"type:text"`
	SegmentID   *string    `json:"segment_id"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at"`

	// Recurrence is a standard cron expression, empty = one-off
	Recurrence string     `json:"recurrence"`
	NextRunAt  *time.Time `json:"next_run_at"`

	DeliveredCount int       `json:"delivered_count" gorm:"not null;default:0"`
	CreatedByID    string    `json:"created_by_id"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Segment *Segment `json:"segment,omitempty" gorm:"foreignKey:SegmentID;constraint:OnDelete:SET NULL"`
}

// Preference is a single per-user UI preference value
type Preference struct {
	BaseModel
	UserID    string    `json:"user_id" gorm:"not null;uniqueIndex:idx_preference_user_key"`
	Key       string    `json:"key" gorm:"not null;uniqueIndex:idx_preference_user_key"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	// Collect all models
	models := []interface{}{
		&Config{}, &User{}, &Tag{}, &Contact{}, &Segment{}, &Campaign{}, &Preference{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// FindByIDWithPreload finds a record by ID with preloading
func FindByIDWithPreload[T any](db *gorm.DB, id string, model *T, preloads ...string) error {
	query := db
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	return query.Where("id = ?", id).First(model).Error
}
