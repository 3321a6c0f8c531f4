package app

import (
	"context"
	"time"

	ac "github.com/interviewhub/authcore"
	"github.com/interviewhub/authcore/logging"
)

// runMaintenance purges the ledger once right away and then every interval
// until ctx is done. A failed run is logged and retried on the next tick.
func runMaintenance(ctx context.Context, auth *ac.Auth, interval time.Duration, logger logging.Logger) {
	run := func() {
		report, err := auth.RunMaintenance(ctx)
		if err != nil {
			logger.Error(ctx, "maintenance failed", "error", err)
			return
		}
		logger.Info(ctx, "maintenance done", "purged", report.Purged, "ran_at", report.RanAt)
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
