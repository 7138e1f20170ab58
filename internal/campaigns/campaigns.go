// Package campaigns manages campaign drafts, scheduling and delivery runs
package campaigns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/models"
	"github.com/castline-dev/castline/internal/tasks"
)

var (
	ErrNotFound          = errors.New("campaign not found")
	ErrNotEditable       = errors.New("campaign can no longer be edited")
	ErrInvalidRecurrence = errors.New("invalid recurrence")
	ErrInvalidSchedule   = errors.New("invalid schedule")
	ErrSegmentNotFound   = errors.New("segment not found")
)

// Enqueuer is the part of the asynq client the service needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskInspector is the part of the asynq inspector used to recover runs
// whose task was archived after exhausting its retries
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// Input is the writable part of a campaign
type Input struct {
	Name      string  `json:"name" validate:"required,max=120"`
	Channel   string  `json:"channel" validate:"required,oneof=email sms push"`
	Subject   string  `json:"subject" validate:"required_if=Channel email,max=200"`
	Body      string  `json:"body" validate:"required"`
	SegmentID *string `json:"segmentId"`
}

// ScheduleInput describes when a campaign runs. A nil At with no
// recurrence sends immediately.
type ScheduleInput struct {
	At         *time.Time `json:"at"`
	Recurrence string     `json:"recurrence"`
}

// Service handles campaign operations
type Service struct {
	db       *gorm.DB
	enqueuer  Enqueuer
	inspector TaskInspector
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a new campaigns service
func NewService(db *gorm.DB, enqueuer Enqueuer, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		enqueuer: enqueuer,
		logger:   logger.With().Str("component", "campaigns_service").Logger(),
		now:      time.Now,
	}
}

// SetInspector lets RequeueMissed replace archived run tasks. Without one,
// a run whose task still exists in any state is left alone.
func (s *Service) SetInspector(inspector TaskInspector) {
	s.inspector = inspector
}

// List returns campaigns, optionally filtered by status
func (s *Service) List(ctx context.Context, status string) ([]models.Campaign, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var campaigns []models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// Get loads a campaign with its segment
func (s *Service) Get(ctx context.Context, id string) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := models.FindByIDWithPreload(s.db.WithContext(ctx), id, &campaign, "Segment"); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	return &campaign, nil
}

// Create stores a new draft campaign
func (s *Service) Create(ctx context.Context, in Input, createdBy string) (*models.Campaign, error) {
	if err := s.checkSegment(ctx, in.SegmentID); err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		Name:        in.Name,
		Channel:     in.Channel,
		Status:      models.CampaignStatusDraft,
		Subject:     in.Subject,
		Body:        in.Body,
		SegmentID:   in.SegmentID,
		CreatedByID: createdBy,
	}
	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	return campaign, nil
}

// Update edits a campaign that has not started sending
func (s *Service) Update(ctx context.Context, id string, in Input) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !editable(campaign.Status) {
		return nil, ErrNotEditable
	}
	if err := s.checkSegment(ctx, in.SegmentID); err != nil {
		return nil, err
	}

	campaign.Name = in.Name
	campaign.Channel = in.Channel
	campaign.Subject = in.Subject
	campaign.Body = in.Body
	campaign.SegmentID = in.SegmentID
	campaign.Segment = nil

	if err := s.db.WithContext(ctx).Omit("Segment").Save(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}
	return campaign, nil
}

// Delete removes a campaign unless it is mid-send
func (s *Service) Delete(ctx context.Context, id string) error {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status == models.CampaignStatusSending {
		return ErrNotEditable
	}
	if err := s.db.WithContext(ctx).Delete(campaign).Error; err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return nil
}

// Schedule validates the schedule, records the next run and enqueues it
func (s *Service) Schedule(ctx context.Context, id string, in ScheduleInput) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !editable(campaign.Status) {
		return nil, ErrNotEditable
	}

	now := s.now().UTC()
	runAt := now
	if in.Recurrence != "" {
		sched, err := ParseRecurrence(in.Recurrence)
		if err != nil {
			return nil, err
		}
		runAt = sched.Next(now)
	}
	if in.At != nil {
		if in.At.Before(now.Add(-time.Minute)) {
			return nil, fmt.Errorf("%w: %s is in the past", ErrInvalidSchedule, in.At.UTC().Format(time.RFC3339))
		}
		runAt = in.At.UTC()
	}
	runAt = runAt.Truncate(time.Second)

	campaign.Status = models.CampaignStatusScheduled
	campaign.Recurrence = in.Recurrence
	campaign.ScheduledAt = &runAt
	campaign.NextRunAt = &runAt

	if err := s.db.WithContext(ctx).Omit("Segment").Save(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to schedule campaign: %w", err)
	}

	if err := s.Enqueue(ctx, campaign.ID, runAt); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("campaign_id", campaign.ID).
		Time("run_at", runAt).
		Str("recurrence", in.Recurrence).
		Msg("Campaign scheduled")
	return campaign, nil
}

// Unschedule returns a scheduled campaign to draft. Already enqueued runs
// are skipped by the worker because the campaign is no longer scheduled.
func (s *Service) Unschedule(ctx context.Context, id string) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusScheduled {
		return nil, ErrNotEditable
	}

	campaign.Status = models.CampaignStatusDraft
	campaign.NextRunAt = nil
	if err := s.db.WithContext(ctx).Omit("Segment").Save(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to unschedule campaign: %w", err)
	}
	return campaign, nil
}

// Enqueue submits a send task for one run of a campaign. A run whose task
// already exists is left as is.
func (s *Service) Enqueue(ctx context.Context, campaignID string, runAt time.Time) error {
	_, err := s.enqueue(ctx, campaignID, runAt)
	return err
}

// enqueue reports false when a task for the run already exists
func (s *Service) enqueue(ctx context.Context, campaignID string, runAt time.Time) (bool, error) {
	task, err := tasks.NewCampaignSendTask(campaignID, runAt)
	if err != nil {
		return false, err
	}

	_, err = s.enqueuer.EnqueueContext(ctx, task,
		asynq.ProcessAt(runAt),
		asynq.Queue(tasks.QueueDefault),
		asynq.TaskID(tasks.CampaignTaskID(campaignID, runAt)),
		asynq.MaxRetry(3),
	)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to enqueue campaign send: %w", err)
	}
	return true, nil
}

// ParseRecurrence parses a standard five-field cron expression
func ParseRecurrence(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	return sched, nil
}

func (s *Service) checkSegment(ctx context.Context, segmentID *string) error {
	if segmentID == nil {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Segment{}).Where("id = ?", *segmentID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check segment: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrSegmentNotFound, *segmentID)
	}
	return nil
}

func editable(status string) bool {
	return status == models.CampaignStatusDraft || status == models.CampaignStatusScheduled
}
