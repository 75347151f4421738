package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"airpost/internal/anilist"
	"airpost/internal/config"
	"airpost/internal/logging"
	"airpost/internal/store"
)

// ErrRunInProgress means another invocation still holds the run lock.
var ErrRunInProgress = errors.New("another run is already in progress")

// Metadata is the external lookup surface the runner depends on.
type Metadata interface {
	AiringWindow(ctx context.Context, start, end time.Time) ([]anilist.Airing, error)
}

// Summary aggregates what one pipeline run did.
type Summary struct {
	RunID      string
	NewShows   int
	Updated    int
	Episodes   int
	Due        int
	Standalone int
	Relegated  int
	Disabled   int
	Failed     int
	Refreshed  int
	Expired    int64
	Purged     int64
	DryRun     bool
	Elapsed    time.Duration
}

// Runner executes one full pipeline pass: discovery, schedule, engagement
// routing, dispatch, stale refresh, retention. Invocations are serialized
// through a file lock so overlapping cron slots cannot race on the store.
type Runner struct {
	cfg      *config.Config
	store    *store.Store
	metadata Metadata
	platform Platform
	logger   *slog.Logger
	now      func() time.Time
	lock     *flock.Flock
}

// NewRunner wires a runner from its collaborators. A nil now defaults to
// wall-clock time.
func NewRunner(cfg *config.Config, st *store.Store, metadata Metadata, platform Platform, logger *slog.Logger, now func() time.Time) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Runner{
		cfg:      cfg,
		store:    st,
		metadata: metadata,
		platform: platform,
		logger:   logger,
		now:      now,
		lock:     flock.New(cfg.LockPath()),
	}
}

// Run performs one pipeline pass and returns its summary. Per-show lookup
// and dispatch failures are logged and skipped; anything else aborts.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	locked, err := r.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			r.logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	started := r.now()
	summary := &Summary{
		RunID:  uuid.NewString(),
		DryRun: !r.cfg.Options.Submit,
	}
	logger := r.logger.With(logging.String("run_id", summary.RunID))
	logger.Info("run started", logging.Bool("dry_run", summary.DryRun))

	if err := r.refreshSchedule(ctx, logger, summary, started); err != nil {
		return summary, err
	}

	if err := r.dispatchDue(ctx, logger, summary, started); err != nil {
		return summary, err
	}

	planner := NewPlanner(r.cfg, r.store, r.platform, logger, r.now)
	refreshed, err := planner.RefreshStaleThreads(ctx)
	if err != nil {
		return summary, err
	}
	summary.Refreshed = refreshed

	retention := NewRetention(r.store, r.cfg.EpisodeRetention(), logger)
	expired, purged, err := retention.Sweep(ctx, r.now())
	if err != nil {
		return summary, err
	}
	summary.Expired = expired
	summary.Purged = purged

	summary.Elapsed = r.now().Sub(started)
	logger.Info("run finished",
		logging.Int("new_shows", summary.NewShows),
		logging.Int("episodes", summary.Episodes),
		logging.Int("due", summary.Due),
		logging.Int("standalone", summary.Standalone),
		logging.Int("relegated", summary.Relegated),
		logging.Int("failed", summary.Failed),
		logging.Int("refreshed", summary.Refreshed),
		logging.Int64("purged", summary.Purged),
		logging.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

// refreshSchedule pulls the airing window, runs discovery over the media it
// carries, and upserts upcoming episodes.
func (r *Runner) refreshSchedule(ctx context.Context, logger *slog.Logger, summary *Summary, now time.Time) error {
	window := r.cfg.LookaheadWindow()
	airings, err := r.metadata.AiringWindow(ctx, now, now.Add(window))
	if err != nil {
		return Wrap(ErrLookup, "schedule", "fetch airing window", err)
	}
	logger.Info("fetched airing schedule",
		logging.Int("airings", len(airings)),
		logging.Duration("window", window))

	media := make([]anilist.Media, 0, len(airings))
	for _, airing := range airings {
		media = append(media, airing.Media)
	}
	discovery := NewDiscovery(r.cfg.Discovery, r.store, logger)
	result, err := discovery.Process(ctx, media)
	if err != nil {
		return err
	}
	summary.NewShows = result.Added
	summary.Updated = result.Updated
	summary.Disabled += result.Disabled

	schedule := NewSchedule(r.store, r.cfg.PostDelay(), logger)
	recorded, err := schedule.Refresh(ctx, airings)
	if err != nil {
		return err
	}
	summary.Episodes = recorded
	return nil
}

// dispatchDue classifies due episodes and dispatches each one, isolating
// per-show failures.
func (r *Runner) dispatchDue(ctx context.Context, logger *slog.Logger, summary *Summary, now time.Time) error {
	schedule := NewSchedule(r.store, r.cfg.PostDelay(), logger)
	due, err := schedule.DueEpisodes(ctx, now)
	if err != nil {
		return err
	}
	summary.Due = len(due)

	planner := NewPlanner(r.cfg, r.store, r.platform, logger, r.now)
	failedShows := make(map[int64]bool)
	for _, episode := range due {
		if failedShows[episode.ShowID] {
			continue
		}

		route, err := planner.Dispatch(ctx, episode)
		if err != nil {
			if !IsIsolated(err) {
				return err
			}
			summary.Failed++
			failedShows[episode.ShowID] = true
			logger.Warn("skipping show after failure",
				logging.Int64("show_id", episode.ShowID),
				logging.Int("episode", episode.Number),
				logging.Error(err))
			continue
		}

		switch route {
		case RouteStandalone:
			summary.Standalone++
		case RouteMegathread:
			summary.Relegated++
		case RouteDisable:
			summary.Disabled++
			failedShows[episode.ShowID] = true
		}
	}
	return nil
}
