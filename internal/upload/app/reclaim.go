package app

import (
	"context"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/gosdk/logger"
)

// runReclaimLoop sweeps expired sessions every interval until ctx is done.
// A failed sweep is logged and retried on the next tick.
func runReclaimLoop(ctx context.Context, r port.Reclaimer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			stats, err := r.ReclaimExpired(ctx, now)
			if err != nil {
				logger.Errorw("Reclaim sweep failed", "error", err.Error())
				continue
			}
			if stats.ReclaimedSessions > 0 || stats.Skipped > 0 {
				logger.Debugw("Reclaim tick", "sessions", stats.ReclaimedSessions, "skipped", stats.Skipped)
			}
		}
	}
}
