package engine

import (
	"context"
	"log/slog"
	"time"

	"airpost/internal/config"
	"airpost/internal/lemmy"
	"airpost/internal/logging"
	"airpost/internal/store"
	"airpost/internal/templates"
)

// editHistoryWindow caps how many recent episode posts per show get their
// cross-reference table rewritten after a new episode lands.
const editHistoryWindow = 26

// Platform is the discussion service surface the pipeline dispatches to.
type Platform interface {
	CreatePost(ctx context.Context, title, body string, nsfw bool) (string, error)
	CreateComment(ctx context.Context, postURL, content string) (string, error)
	EditPost(ctx context.Context, postURL, body string) error
	GetEngagement(ctx context.Context, link string) (lemmy.Engagement, error)
}

// Planner routes each due episode and executes exactly one dispatch action
// for it. With submit disabled it logs the planned action and leaves all
// external and posted state untouched.
type Planner struct {
	store      *store.Store
	platform   Platform
	builder    *templates.Builder
	allocator  *Allocator
	thresholds Thresholds
	submit     bool
	logger     *slog.Logger
	now        func() time.Time
}

// NewPlanner builds a dispatch planner from the pipeline config.
func NewPlanner(cfg *config.Config, st *store.Store, platform Platform, logger *slog.Logger, now func() time.Time) *Planner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	builder := templates.NewBuilder(cfg)
	return &Planner{
		store:     st,
		platform:  platform,
		builder:   builder,
		allocator: NewAllocator(st, platform, builder, cfg.Options.MegathreadEpisodes, logger),
		thresholds: ThresholdsFromOptions(
			cfg.Options.MinUpvotes,
			cfg.Options.MinComments,
			cfg.Options.EngagementLagHours,
			cfg.Options.DisableInactive,
		),
		submit: cfg.Options.Submit,
		logger: logger,
		now:    now,
	}
}

// Dispatch handles one due episode and returns the route taken. Lookup and
// dispatch errors are classified so the caller can isolate them to this
// show; store errors are fatal.
func (p *Planner) Dispatch(ctx context.Context, episode *store.Episode) (Route, error) {
	show, err := p.store.GetShow(ctx, episode.ShowID)
	if err != nil {
		return RouteStandalone, Wrap(ErrFatal, "dispatch", "load show", err)
	}
	if show == nil || !show.Enabled {
		return RouteStandalone, Wrap(ErrLookup, "dispatch", "show missing or disabled", nil)
	}

	route, err := p.route(ctx, show, episode)
	if err != nil {
		return route, err
	}

	logger := p.logger.With(
		logging.Int64("show_id", show.ID),
		logging.String("show", show.Name),
		logging.Int("episode", episode.Number),
		logging.String("route", route.String()))

	if route == RouteDisable {
		if !p.submit {
			logger.Info("dry run: would disable inactive show")
			return route, nil
		}
		if err := p.store.SetShowEnabled(ctx, show.ID, false); err != nil {
			return route, Wrap(ErrFatal, "dispatch", "disable show", err)
		}
		logger.Info("disabled inactive show")
		return route, nil
	}

	if !p.submit {
		logger.Info("dry run: would dispatch episode")
		return route, nil
	}

	switch route {
	case RouteStandalone:
		if err := p.postStandalone(ctx, show, episode); err != nil {
			return route, err
		}
	case RouteMegathread:
		if _, err := p.allocator.Attach(ctx, show, episode); err != nil {
			return route, err
		}
	}

	logger.Info("dispatched episode")
	return route, nil
}

// route classifies the episode from the preceding posted episode's thread.
// Engagement is re-fetched only once the lag window has passed; inside the
// window the evaluator reuses the preceding routing anyway.
func (p *Planner) route(ctx context.Context, show *store.Show, episode *store.Episode) (Route, error) {
	previous, err := p.store.LatestPostedEpisode(ctx, show.ID)
	if err != nil {
		return RouteStandalone, Wrap(ErrFatal, "dispatch", "load previous episode", err)
	}
	if previous == nil {
		return RouteStandalone, nil
	}

	thread, err := p.store.ThreadForEpisode(ctx, previous.ID)
	if err != nil {
		return RouteStandalone, Wrap(ErrFatal, "dispatch", "load previous thread", err)
	}
	if thread == nil {
		return RouteStandalone, nil
	}

	now := p.now()
	snapshot := &ThreadSnapshot{
		Kind:      thread.Kind,
		Votes:     thread.Votes,
		Comments:  thread.Comments,
		CreatedAt: thread.CreatedAt,
	}

	if now.Sub(thread.CreatedAt) >= p.thresholds.Lag {
		engagement, err := p.platform.GetEngagement(ctx, thread.URL)
		if err != nil {
			return RouteStandalone, Wrap(ErrLookup, "dispatch", "fetch engagement", err)
		}
		snapshot.Votes = engagement.Upvotes
		snapshot.Comments = engagement.Comments
		if err := p.store.UpdateThreadEngagement(ctx, thread.ID, engagement.Upvotes, engagement.Comments, now); err != nil {
			return RouteStandalone, Wrap(ErrFatal, "dispatch", "record engagement", err)
		}
	}

	return Evaluate(snapshot, p.thresholds, now), nil
}

func (p *Planner) postStandalone(ctx context.Context, show *store.Show, episode *store.Episode) error {
	title := p.builder.PostTitle(show, episode.Number)
	body, err := p.standaloneBody(ctx, show, episode.Number)
	if err != nil {
		return err
	}

	url, err := p.platform.CreatePost(ctx, title, body, show.NSFW)
	if err != nil {
		return Wrap(ErrDispatch, "dispatch", "create post", err)
	}

	if _, err := p.store.MarkPosted(ctx, episode, store.ThreadStandalone, url); err != nil {
		return Wrap(ErrFatal, "dispatch", "record post", err)
	}
	return nil
}

func (p *Planner) standaloneBody(ctx context.Context, show *store.Show, episodeNumber int) (string, error) {
	aliases, err := p.store.Aliases(ctx, show.ID)
	if err != nil {
		return "", Wrap(ErrFatal, "dispatch", "load aliases", err)
	}
	threads, err := p.store.ThreadsByShow(ctx, show.ID)
	if err != nil {
		return "", Wrap(ErrFatal, "dispatch", "load threads", err)
	}

	discussions := make([]templates.Discussion, 0, len(threads))
	for _, thread := range threads {
		discussions = append(discussions, templates.Discussion{
			Episode: thread.Episode,
			URL:     thread.URL,
		})
	}
	return p.builder.PostBody(show, episodeNumber, aliases, discussions), nil
}

// RefreshStaleThreads rewrites the cross-reference table of standalone posts
// whose rendering went stale when a newer episode landed. Only the most
// recent posts per show are edited; older ones and comment links just have
// their stale flag cleared.
func (p *Planner) RefreshStaleThreads(ctx context.Context) (int, error) {
	if !p.submit {
		return 0, nil
	}

	stale, err := p.store.StaleStandaloneThreads(ctx)
	if err != nil {
		return 0, Wrap(ErrFatal, "refresh", "list stale threads", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	// Episode count per show determines which stale threads fall inside the
	// edit window.
	latestEpisode := make(map[int64]int)
	for _, thread := range stale {
		if thread.Episode > latestEpisode[thread.ShowID] {
			latestEpisode[thread.ShowID] = thread.Episode
		}
	}
	shows := make(map[int64]*store.Show)

	refreshed := 0
	for _, thread := range stale {
		if !lemmy.IsPostURL(thread.URL) || thread.Episode <= latestEpisode[thread.ShowID]-editHistoryWindow {
			if err := p.store.ClearThreadStale(ctx, thread.ID); err != nil {
				return refreshed, Wrap(ErrFatal, "refresh", "clear stale flag", err)
			}
			continue
		}

		show := shows[thread.ShowID]
		if show == nil {
			show, err = p.store.GetShow(ctx, thread.ShowID)
			if err != nil {
				return refreshed, Wrap(ErrFatal, "refresh", "load show", err)
			}
			if show == nil {
				continue
			}
			shows[thread.ShowID] = show
		}

		body, err := p.standaloneBody(ctx, show, thread.Episode)
		if err != nil {
			return refreshed, err
		}
		if err := p.platform.EditPost(ctx, thread.URL, body); err != nil {
			p.logger.Warn("thread refresh failed",
				logging.Int64("thread_id", thread.ID),
				logging.String("url", thread.URL),
				logging.Error(err))
			continue
		}
		if err := p.store.ClearThreadStale(ctx, thread.ID); err != nil {
			return refreshed, Wrap(ErrFatal, "refresh", "clear stale flag", err)
		}
		refreshed++
	}

	return refreshed, nil
}
