package engine

import (
	"context"
	"log/slog"
	"time"

	"airpost/internal/logging"
	"airpost/internal/store"
)

// Retention ages out episodes that never got posted. Posted episodes and
// their threads are never touched.
type Retention struct {
	store  *store.Store
	window time.Duration
	logger *slog.Logger
}

// NewRetention builds a retention sweeper. window is how long an unposted
// episode is kept past its air time.
func NewRetention(st *store.Store, window time.Duration, logger *slog.Logger) *Retention {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Retention{store: st, window: window, logger: logger}
}

// Sweep expires unposted episodes older than the retention window and then
// purges all expired records. Returns expired and purged counts.
func (r *Retention) Sweep(ctx context.Context, now time.Time) (int64, int64, error) {
	cutoff := now.Add(-r.window)

	expired, err := r.store.ExpireEpisodesBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, Wrap(ErrFatal, "retention", "expire episodes", err)
	}

	purged, err := r.store.DeleteExpiredEpisodes(ctx)
	if err != nil {
		return expired, 0, Wrap(ErrFatal, "retention", "purge episodes", err)
	}

	if expired > 0 || purged > 0 {
		r.logger.Info("retention sweep",
			logging.Int64("expired", expired),
			logging.Int64("purged", purged))
	}
	return expired, purged, nil
}
