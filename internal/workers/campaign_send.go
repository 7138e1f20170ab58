package workers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/castline-dev/castline/internal/campaigns"
	"github.com/castline-dev/castline/internal/tasks"
)

// HandleCampaignSend delivers one run of a campaign.
// This is a thin adapter that delegates to the campaigns service.
func HandleCampaignSend(ctx context.Context, t *asynq.Task, svc *campaigns.Service, logger zerolog.Logger) error {
	payload, err := tasks.ParseCampaignPayload(t)
	if err != nil {
		// a malformed payload will never succeed
		return fmt.Errorf("failed to parse payload: %w: %w", err, asynq.SkipRetry)
	}

	result, err := svc.Run(ctx, payload.CampaignID, payload.RunAt)
	if err != nil {
		return fmt.Errorf("failed to run campaign %s: %w", payload.CampaignID, err)
	}

	event := logger.Info().
		Str("campaign_id", payload.CampaignID).
		Time("run_at", payload.RunAt).
		Bool("skipped", result.Skipped).
		Int("delivered", result.Delivered)
	if result.NextRunAt != nil {
		event = event.Time("next_run_at", *result.NextRunAt)
	}
	event.Msg("Campaign send task finished")

	return nil
}
