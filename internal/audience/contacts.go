package audience

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/models"
)

// ContactInput is the writable part of a contact
type ContactInput struct {
	Email      string            `json:"email" validate:"required,email"`
	FirstName  string            `json:"firstName" validate:"max=100"`
	LastName   string            `json:"lastName" validate:"max=100"`
	Phone      string            `json:"phone" validate:"omitempty,e164"`
	Status     string            `json:"status" validate:"omitempty,oneof=subscribed unsubscribed bounced"`
	Attributes map[string]string `json:"attributes"`
}

// ContactQuery filters the contact list
type ContactQuery struct {
	Search string
	Status string
	TagID  string
	Limit  int
	Offset int
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ListContacts returns a page of contacts and the total matching count
func (s *Service) ListContacts(ctx context.Context, q ContactQuery) ([]models.Contact, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Contact{})

	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.TagID != "" {
		query = query.Where("id IN (?)", s.db.Table("contact_tags").Select("contact_id").Where("tag_id = ?", q.TagID))
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count contacts: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var contacts []models.Contact
	if err := query.Preload("Tags").Order("created_at DESC").Limit(limit).Offset(q.Offset).Find(&contacts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, total, nil
}

// GetContact loads a contact with its tags
func (s *Service) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	var contact models.Contact
	if err := models.FindByIDWithPreload(s.db.WithContext(ctx), id, &contact, "Tags"); err != nil {
		return nil, notFound(err)
	}
	return &contact, nil
}

// CreateContact adds a contact; emails are unique case-insensitively
func (s *Service) CreateContact(ctx context.Context, in ContactInput) (*models.Contact, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	contact := &models.Contact{
		Email:      email,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Phone:      in.Phone,
		Status:     in.Status,
		Attributes: in.Attributes,
	}
	if contact.Status == "" {
		contact.Status = models.ContactStatusSubscribed
	}

	if err := s.db.WithContext(ctx).Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return contact, nil
}

// UpdateContact replaces a contact's writable fields
func (s *Service) UpdateContact(ctx context.Context, id string, in ContactInput) (*models.Contact, error) {
	contact, err := s.GetContact(ctx, id)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.ensureEmailFree(ctx, email, id); err != nil {
		return nil, err
	}

	contact.Email = email
	contact.FirstName = in.FirstName
	contact.LastName = in.LastName
	contact.Phone = in.Phone
	contact.Attributes = in.Attributes
	if in.Status != "" {
		contact.Status = in.Status
	}

	if err := s.db.WithContext(ctx).Omit("Tags").Save(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	return contact, nil
}

// DeleteContact removes a contact and its tag and segment links
func (s *Service) DeleteContact(ctx context.Context, id string) error {
	contact, err := s.GetContact(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(contact).Association("Tags").Clear(); err != nil {
			return fmt.Errorf("failed to clear contact tags: %w", err)
		}
		if err := tx.Exec("DELETE FROM segment_contacts WHERE contact_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to clear segment membership: %w", err)
		}
		if err := tx.Delete(contact).Error; err != nil {
			return fmt.Errorf("failed to delete contact: %w", err)
		}
		return nil
	})
}

func (s *Service) ensureEmailFree(ctx context.Context, email, exceptID string) error {
	query := s.db.WithContext(ctx).Model(&models.Contact{}).Where("email = ?", email)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check contact email: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("contact %s: %w", email, ErrDuplicate)
	}
	return nil
}
