package authcore

import (
	"context"
	"fmt"
	"time"
)

// MaintenanceReport describes one maintenance run.
type MaintenanceReport struct {
	RanAt  time.Time
	Purged int64
}

// RunMaintenance deletes ledger records whose token has already expired.
// A record is removed only once its expiry is strictly in the past, so a run
// that starts late still never drops a record a live token depends on.
// It is safe to call repeatedly and concurrently with request traffic.
func (a *Auth) RunMaintenance(ctx context.Context) (MaintenanceReport, error) {
	now := a.now()
	purged, err := a.Ledger.PurgeExpired(ctx, now)
	if err != nil {
		return MaintenanceReport{RanAt: now}, fmt.Errorf("failed to purge expired tokens: %w", err)
	}
	if purged > 0 {
		a.Logger.Info(ctx, "purged expired token records", "count", purged)
	}
	return MaintenanceReport{RanAt: now, Purged: purged}, nil
}
