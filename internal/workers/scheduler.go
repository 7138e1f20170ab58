package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/castline-dev/castline/internal/campaigns"
)

// MissedRunGrace is how overdue a scheduled run must be before the
// scheduler assumes its task was lost
const MissedRunGrace = 2 * time.Minute

// StartCampaignScheduler runs a periodic check (every interval) for scheduled
// runs whose tasks never fired, until ctx is cancelled
func StartCampaignScheduler(ctx context.Context, svc *campaigns.Service, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on startup, then every interval
	checkMissedRuns(ctx, svc, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Campaign scheduler stopped")
			return
		case <-ticker.C:
			checkMissedRuns(ctx, svc, logger)
		}
	}
}

func checkMissedRuns(ctx context.Context, svc *campaigns.Service, logger zerolog.Logger) int {
	n, err := svc.RequeueMissed(ctx, MissedRunGrace)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to requeue missed campaign runs")
		return 0
	}
	if n > 0 {
		logger.Info().Int("requeued", n).Msg("Requeued missed campaign runs")
	} else {
		logger.Debug().Msg("No missed campaign runs")
	}
	return n
}
