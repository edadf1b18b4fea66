package maintenance

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/langerlad/bulk-ip-app/internal/support"
)

const (
	envPurgeInterval      = "DRAFT_PURGE_INTERVAL"
	defaultPurgeInterval  = time.Hour
	minimumPurgeInterval  = time.Minute
	purgeOperationTimeout = 30 * time.Second
)

// Purger deletes drafts last written before cutoff.
type Purger interface {
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartDraftPurgeRoutine removes drafts idle longer than ttl until ctx ends.
// Stores with native expiry do not need it.
func StartDraftPurgeRoutine(ctx context.Context, store Purger, ttl time.Duration) {
	if store == nil || ttl <= 0 {
		return
	}

	ticker := time.NewTicker(resolvePurgeInterval())
	defer ticker.Stop()

	runDraftPurge(ctx, store, ttl, time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			runDraftPurge(ctx, store, ttl, now)
		}
	}
}

func resolvePurgeInterval() time.Duration {
	interval := support.GetEnvDuration(envPurgeInterval, defaultPurgeInterval)
	if interval < minimumPurgeInterval {
		log.Warn("DRAFT_PURGE_INTERVAL too short, using minimum", "value", interval, "minimum", minimumPurgeInterval)
		return minimumPurgeInterval
	}
	return interval
}

func runDraftPurge(ctx context.Context, store Purger, ttl time.Duration, now time.Time) int64 {
	opCtx, cancel := context.WithTimeout(ctx, purgeOperationTimeout)
	defer cancel()

	start := time.Now()
	removed, err := store.PurgeStale(opCtx, now.Add(-ttl))
	if err != nil {
		log.Error("Failed to purge stale drafts", "error", err)
		return 0
	}

	if removed > 0 {
		log.Info("Stale drafts purged", "removed", removed, "duration", time.Since(start))
	}
	return removed
}
