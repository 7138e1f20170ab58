package audience

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/models"
)

// TagInput is the writable part of a tag
type TagInput struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// ListTags returns every tag ordered by name
func (s *Service) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// CreateTag adds a tag; names are unique case-insensitively
func (s *Service) CreateTag(ctx context.Context, in TagInput) (*models.Tag, error) {
	name := strings.TrimSpace(in.Name)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Tag{}).Where("LOWER(name) = ?", strings.ToLower(name)).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check tag name: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("tag %s: %w", name, ErrDuplicate)
	}

	tag := &models.Tag{Name: name, Color: in.Color}
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return tag, nil
}

// DeleteTag removes a tag and detaches it from every contact
func (s *Service) DeleteTag(ctx context.Context, id string) error {
	var tag models.Tag
	if err := models.FindByID(s.db.WithContext(ctx), id, &tag); err != nil {
		return notFound(err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM contact_tags WHERE tag_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to detach tag: %w", err)
		}
		if err := tx.Delete(&tag).Error; err != nil {
			return fmt.Errorf("failed to delete tag: %w", err)
		}
		return nil
	})
}

// AssignTags attaches tags to a contact, ignoring ones already attached
func (s *Service) AssignTags(ctx context.Context, contactID string, tagIDs []string) (*models.Contact, error) {
	contact, err := s.GetContact(ctx, contactID)
	if err != nil {
		return nil, err
	}

	var tags []models.Tag
	if err := s.db.WithContext(ctx).Where("id IN ?", tagIDs).Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	if len(tags) != len(uniq(tagIDs)) {
		return nil, fmt.Errorf("tag: %w", ErrNotFound)
	}

	if err := s.db.WithContext(ctx).Model(contact).Association("Tags").Append(tags); err != nil {
		return nil, fmt.Errorf("failed to assign tags: %w", err)
	}
	return s.GetContact(ctx, contactID)
}

// RemoveTag detaches a single tag from a contact
func (s *Service) RemoveTag(ctx context.Context, contactID, tagID string) error {
	contact, err := s.GetContact(ctx, contactID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(contact).Association("Tags").Delete(&models.Tag{BaseModel: models.BaseModel{ID: tagID}}); err != nil {
		return fmt.Errorf("failed to remove tag: %w", err)
	}
	return nil
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
