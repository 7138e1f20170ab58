package campaigns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/models"
	"github.com/castline-dev/castline/internal/tasks"
)

// RunResult describes what a send run did
type RunResult struct {
	Skipped   bool
	Delivered int
	NextRunAt *time.Time
}

// Run delivers one scheduled run of a campaign. Runs that no longer match
// the campaign's schedule (unscheduled, rescheduled, already sent) are
// skipped so stale tasks are harmless.
func (s *Service) Run(ctx context.Context, campaignID string, runAt time.Time) (RunResult, error) {
	var result RunResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign models.Campaign
		if err := models.FindByID(tx, campaignID, &campaign); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result.Skipped = true
				return nil
			}
			return fmt.Errorf("failed to load campaign: %w", err)
		}

		if campaign.Status != models.CampaignStatusScheduled ||
			campaign.NextRunAt == nil ||
			campaign.NextRunAt.Unix() != runAt.Unix() {
			result.Skipped = true
			return nil
		}

		delivered, err := s.audienceSize(tx, campaign.SegmentID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		campaign.DeliveredCount += delivered
		campaign.SentAt = &now
		campaign.Status = models.CampaignStatusSent
		campaign.NextRunAt = nil

		if campaign.Recurrence != "" {
			sched, err := ParseRecurrence(campaign.Recurrence)
			if err != nil {
				return err
			}
			// never schedule the next run at or before the one just delivered
			base := now
			if runAt.After(base) {
				base = runAt
			}
			next := sched.Next(base).Truncate(time.Second)
			campaign.Status = models.CampaignStatusScheduled
			campaign.NextRunAt = &next
			result.NextRunAt = &next
		}

		if err := tx.Omit("Segment").Save(&campaign).Error; err != nil {
			return fmt.Errorf("failed to record campaign run: %w", err)
		}

		result.Delivered = delivered
		return nil
	})
	if err != nil {
		return RunResult{}, err
	}

	if result.Skipped {
		s.logger.Info().Str("campaign_id", campaignID).Time("run_at", runAt).Msg("Skipping stale campaign run")
		return result, nil
	}

	s.logger.Info().
		Str("campaign_id", campaignID).
		Int("delivered", result.Delivered).
		Msg("Campaign run delivered")

	if result.NextRunAt != nil {
		if err := s.Enqueue(ctx, campaignID, *result.NextRunAt); err != nil {
			return result, err
		}
	}
	return result, nil
}

// RequeueMissed re-enqueues scheduled runs that are overdue by more than
// grace, e.g. after the queue lost its state. Returns how many were requeued.
func (s *Service) RequeueMissed(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-grace)

	var overdue []models.Campaign
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_run_at IS NOT NULL AND next_run_at < ?", models.CampaignStatusScheduled, cutoff).
		Find(&overdue).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find overdue campaigns: %w", err)
	}

	requeued := 0
	for _, c := range overdue {
		ok, err := s.requeue(ctx, c.ID, *c.NextRunAt)
		if err != nil {
			return requeued, err
		}
		if !ok {
			s.logger.Debug().Str("campaign_id", c.ID).Time("next_run_at", *c.NextRunAt).Msg("Overdue campaign run is still queued")
			continue
		}
		requeued++
		s.logger.Warn().Str("campaign_id", c.ID).Time("next_run_at", *c.NextRunAt).Msg("Requeued overdue campaign run")
	}
	return requeued, nil
}

// requeue enqueues an overdue run. An existing task for the run is only
// replaced when asynq archived it after its retries ran out.
func (s *Service) requeue(ctx context.Context, campaignID string, runAt time.Time) (bool, error) {
	ok, err := s.enqueue(ctx, campaignID, runAt)
	if err != nil || ok || s.inspector == nil {
		return ok, err
	}

	taskID := tasks.CampaignTaskID(campaignID, runAt)
	info, err := s.inspector.GetTaskInfo(tasks.QueueDefault, taskID)
	switch {
	case errors.Is(err, asynq.ErrTaskNotFound):
		return s.enqueue(ctx, campaignID, runAt)
	case err != nil:
		return false, fmt.Errorf("failed to inspect campaign task: %w", err)
	case info.State != asynq.TaskStateArchived:
		return false, nil
	}

	if err := s.inspector.DeleteTask(tasks.QueueDefault, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, fmt.Errorf("failed to delete archived campaign task: %w", err)
	}
	s.logger.Warn().Str("campaign_id", campaignID).Str("task_id", taskID).Msg("Replacing archived campaign run task")
	return s.enqueue(ctx, campaignID, runAt)
}

// audienceSize counts subscribed recipients: segment members, or every
// subscribed contact when the campaign has no segment.
func (s *Service) audienceSize(tx *gorm.DB, segmentID *string) (int, error) {
	query := tx.Model(&models.Contact{}).Where("contacts.status = ?", models.ContactStatusSubscribed)
	if segmentID != nil {
		query = query.
			Joins("JOIN segment_contacts ON segment_contacts.contact_id = contacts.id").
			Where("segment_contacts.segment_id = ?", *segmentID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count audience: %w", err)
	}
	return int(count), nil
}
