package engine

import (
	"context"
	"log/slog"
	"time"

	"airpost/internal/anilist"
	"airpost/internal/logging"
	"airpost/internal/store"
)

// Schedule keeps the episode table in sync with the reported airing times
// and classifies episodes as upcoming or due.
type Schedule struct {
	store     *store.Store
	postDelay time.Duration
	logger    *slog.Logger
}

// NewSchedule builds a schedule evaluator. postDelay is how long after an
// episode finishes airing its discussion is held back.
func NewSchedule(st *store.Store, postDelay time.Duration, logger *slog.Logger) *Schedule {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Schedule{store: st, postDelay: postDelay, logger: logger}
}

// Refresh upserts upcoming episodes for enabled shows from the reported
// airing schedule. Returns the number of airings recorded.
func (s *Schedule) Refresh(ctx context.Context, airings []anilist.Airing) (int, error) {
	enabled, err := s.store.Shows(ctx, store.ShowFilterEnabled)
	if err != nil {
		return 0, Wrap(ErrFatal, "schedule", "list enabled shows", err)
	}
	tracked := make(map[int64]bool, len(enabled))
	for _, show := range enabled {
		tracked[show.ID] = true
	}

	recorded := 0
	for _, airing := range airings {
		if !tracked[airing.Media.ID] {
			continue
		}
		if err := s.store.UpsertUpcoming(ctx, airing.Media.ID, airing.Episode, airing.AirsAt); err != nil {
			return recorded, Wrap(ErrFatal, "schedule", "upsert episode", err)
		}
		recorded++
	}
	return recorded, nil
}

// DueEpisodes promotes upcoming episodes whose hold-back has elapsed and
// returns all due episodes ordered by air time, oldest first, so a delayed
// run still posts chronologically.
func (s *Schedule) DueEpisodes(ctx context.Context, now time.Time) ([]*store.Episode, error) {
	episodes, err := s.store.EpisodesInState(ctx, store.EpisodeUpcoming, store.EpisodeDue)
	if err != nil {
		return nil, Wrap(ErrFatal, "schedule", "list pending episodes", err)
	}

	var due []*store.Episode
	for _, episode := range episodes {
		if episode.State == store.EpisodeUpcoming {
			if now.Before(episode.AirTime.Add(s.postDelay)) {
				continue
			}
			if err := s.store.SetEpisodeState(ctx, episode.ID, store.EpisodeDue); err != nil {
				return nil, Wrap(ErrFatal, "schedule", "mark episode due", err)
			}
			episode.State = store.EpisodeDue
		}
		due = append(due, episode)
	}

	s.logger.Debug("classified due episodes", logging.Int("due", len(due)))
	return due, nil
}
