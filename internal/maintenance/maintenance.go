// Package maintenance runs periodic background tasks as Go tickers. The
// only task today is the scan-event retention sweep; the audit trail is
// append-only, so old rows leave through here and nowhere else.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/X-404JPG/furtagph/internal/scan"
)

const sweepInterval = 6 * time.Hour

// Start launches the retention sweeper. retention <= 0 disables it. Blocks
// until ctx is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, store scan.Store, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		logger.Info("Retention sweeper disabled")
		return
	}

	logger.Info("Retention sweeper started",
		"retention", retention, "interval", sweepInterval)

	t := time.NewTicker(sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			sweep(ctx, store, retention, logger)
		case <-ctx.Done():
			logger.Info("Retention sweeper stopped")
			return
		}
	}
}

// sweep purges scan events older than the retention period.
func sweep(ctx context.Context, store scan.Store, retention time.Duration, logger *slog.Logger) {
	cutoff := time.Now().UTC().Add(-retention)
	purged, err := store.PurgeScans(ctx, cutoff)
	if err != nil {
		logger.Warn("Retention sweep failed", "error", err)
		return
	}
	if purged > 0 {
		logger.Info("Retention sweep purged old scan events", "count", purged, "cutoff", cutoff)
	}
}
