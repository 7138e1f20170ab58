package audience

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/filters"
	"github.com/castline-dev/castline/internal/models"
)

// SegmentInput is the writable part of a segment
type SegmentInput struct {
	Name        string        `json:"name" validate:"required,max=100"`
	Description string        `json:"description" validate:"max=500"`
	Filter      filters.Group `json:"filter" validate:"-"`
}

// SegmentSummary is a segment plus its member count
type SegmentSummary struct {
	models.Segment
	MemberCount int64 `json:"member_count"`
}

// ListSegments returns all segments with member counts
func (s *Service) ListSegments(ctx context.Context) ([]SegmentSummary, error) {
	var segments []models.Segment
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	out := make([]SegmentSummary, len(segments))
	for i, seg := range segments {
		count, err := s.MemberCount(ctx, seg.ID)
		if err != nil {
			return nil, err
		}
		out[i] = SegmentSummary{Segment: seg, MemberCount: count}
	}
	return out, nil
}

// GetSegment loads a single segment
func (s *Service) GetSegment(ctx context.Context, id string) (*models.Segment, error) {
	var seg models.Segment
	if err := models.FindByID(s.db.WithContext(ctx), id, &seg); err != nil {
		return nil, notFound(err)
	}
	return &seg, nil
}

// CreateSegment validates the filter against the schema and stores the segment
func (s *Service) CreateSegment(ctx context.Context, in SegmentInput, createdBy string) (*models.Segment, error) {
	if err := s.normalizeFilter(&in.Filter); err != nil {
		return nil, err
	}

	seg := &models.Segment{
		Name:        in.Name,
		Description: in.Description,
		Filter:      in.Filter,
		CreatedByID: createdBy,
	}
	if err := s.db.WithContext(ctx).Create(seg).Error; err != nil {
		return nil, fmt.Errorf("failed to create segment: %w", err)
	}

	s.logger.Info().Str("segment_id", seg.ID).Int("conditions", len(seg.Filter.Conditions)).Msg("Segment created")
	return seg, nil
}

// UpdateSegment replaces a segment's name, description and filter
func (s *Service) UpdateSegment(ctx context.Context, id string, in SegmentInput) (*models.Segment, error) {
	seg, err := s.GetSegment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.normalizeFilter(&in.Filter); err != nil {
		return nil, err
	}

	seg.Name = in.Name
	seg.Description = in.Description
	seg.Filter = in.Filter

	if err := s.db.WithContext(ctx).Omit("Members").Save(seg).Error; err != nil {
		return nil, fmt.Errorf("failed to update segment: %w", err)
	}
	return seg, nil
}

// DeleteSegment removes a segment; campaigns targeting it lose their segment
func (s *Service) DeleteSegment(ctx context.Context, id string) error {
	seg, err := s.GetSegment(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Campaign{}).Where("segment_id = ?", id).Update("segment_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach campaigns: %w", err)
		}
		if err := tx.Exec("DELETE FROM segment_contacts WHERE segment_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to clear members: %w", err)
		}
		if err := tx.Delete(seg).Error; err != nil {
			return fmt.Errorf("failed to delete segment: %w", err)
		}
		return nil
	})
}

// SetMembers replaces the contacts belonging to a segment
func (s *Service) SetMembers(ctx context.Context, segmentID string, contactIDs []string) error {
	seg, err := s.GetSegment(ctx, segmentID)
	if err != nil {
		return err
	}

	var contacts []models.Contact
	if len(contactIDs) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", contactIDs).Find(&contacts).Error; err != nil {
			return fmt.Errorf("failed to load contacts: %w", err)
		}
		if len(contacts) != len(uniq(contactIDs)) {
			return fmt.Errorf("contact: %w", ErrNotFound)
		}
	}

	assoc := s.db.WithContext(ctx).Model(seg).Association("Members")
	if len(contacts) == 0 {
		if err := assoc.Clear(); err != nil {
			return fmt.Errorf("failed to clear members: %w", err)
		}
		return nil
	}
	if err := assoc.Replace(contacts); err != nil {
		return fmt.Errorf("failed to replace members: %w", err)
	}
	return nil
}

// MemberCount counts subscribed contacts in a segment
func (s *Service) MemberCount(ctx context.Context, segmentID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Contact{}).
		Joins("JOIN segment_contacts ON segment_contacts.contact_id = contacts.id").
		Where("segment_contacts.segment_id = ? AND contacts.status = ?", segmentID, models.ContactStatusSubscribed).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count segment members: %w", err)
	}
	return count, nil
}

func (s *Service) normalizeFilter(g *filters.Group) error {
	if g.Match == "" {
		g.Match = filters.MatchAll
	}
	return s.schema.Validate(*g)
}
