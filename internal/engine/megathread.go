package engine

import (
	"context"
	"log/slog"

	"airpost/internal/logging"
	"airpost/internal/store"
	"airpost/internal/templates"
)

// Allocator manages the per-show megathread state machine: no megathread,
// one open megathread, or closed with a successor allocated on demand. A
// closed megathread is never reopened.
type Allocator struct {
	store    *store.Store
	platform Platform
	builder  *templates.Builder
	capacity int
	logger   *slog.Logger
}

// NewAllocator builds a megathread allocator. capacity is the number of
// episode comments a megathread accepts before it is closed.
func NewAllocator(st *store.Store, platform Platform, builder *templates.Builder, capacity int, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Allocator{
		store:    st,
		platform: platform,
		builder:  builder,
		capacity: capacity,
		logger:   logger,
	}
}

// Attach routes one due episode into the show's open megathread, allocating
// a new one first when none is open. The comment is recorded as the
// episode's thread and the megathread closes once it reaches capacity.
func (a *Allocator) Attach(ctx context.Context, show *store.Show, episode *store.Episode) (*store.Thread, error) {
	megathread, err := a.store.OpenMegathread(ctx, show.ID)
	if err != nil {
		return nil, Wrap(ErrFatal, "megathread", "load open megathread", err)
	}

	if megathread == nil {
		megathread, err = a.allocate(ctx, show)
		if err != nil {
			return nil, err
		}
	}

	comment := a.builder.MegathreadComment(show, episode.Number)
	commentURL, err := a.platform.CreateComment(ctx, megathread.URL, comment)
	if err != nil {
		return nil, Wrap(ErrDispatch, "megathread", "create comment", err)
	}

	thread, err := a.store.MarkPosted(ctx, episode, store.ThreadMegathreadComment, commentURL)
	if err != nil {
		return nil, Wrap(ErrFatal, "megathread", "record comment", err)
	}

	count, err := a.store.IncrementMegathreadCount(ctx, show.ID, megathread.Seq)
	if err != nil {
		return nil, Wrap(ErrFatal, "megathread", "increment count", err)
	}
	if count >= a.capacity {
		if err := a.store.CloseMegathread(ctx, show.ID, megathread.Seq); err != nil {
			return nil, Wrap(ErrFatal, "megathread", "close megathread", err)
		}
		a.logger.Info("megathread reached capacity",
			logging.Int64("show_id", show.ID),
			logging.Int("seq", megathread.Seq),
			logging.Int("episodes", count))
	}

	if err := a.refreshBody(ctx, show, megathread.URL); err != nil {
		// The comment is already durably recorded; a failed body edit is
		// retried the next time an episode attaches.
		a.logger.Warn("megathread body refresh failed",
			logging.Int64("show_id", show.ID),
			logging.Error(err))
	}

	return thread, nil
}

func (a *Allocator) allocate(ctx context.Context, show *store.Show) (*store.Megathread, error) {
	seq := 1
	latest, err := a.store.LatestMegathread(ctx, show.ID)
	if err != nil {
		return nil, Wrap(ErrFatal, "megathread", "load latest megathread", err)
	}
	if latest != nil {
		seq = latest.Seq + 1
	}

	title := a.builder.MegathreadTitle(show)
	body := a.builder.MegathreadBody(show, nil)
	url, err := a.platform.CreatePost(ctx, title, body, show.NSFW)
	if err != nil {
		return nil, Wrap(ErrDispatch, "megathread", "create megathread post", err)
	}

	megathread, err := a.store.CreateMegathread(ctx, show.ID, seq, url)
	if err != nil {
		return nil, Wrap(ErrFatal, "megathread", "record megathread", err)
	}

	a.logger.Info("allocated megathread",
		logging.Int64("show_id", show.ID),
		logging.Int("seq", seq),
		logging.String("url", url))
	return megathread, nil
}

// refreshBody rewrites the megathread body so its episode table includes the
// newly attached comment.
func (a *Allocator) refreshBody(ctx context.Context, show *store.Show, megathreadURL string) error {
	discussions, err := a.showDiscussions(ctx, show.ID)
	if err != nil {
		return err
	}
	body := a.builder.MegathreadBody(show, discussions)
	if err := a.platform.EditPost(ctx, megathreadURL, body); err != nil {
		return Wrap(ErrDispatch, "megathread", "edit megathread body", err)
	}
	return nil
}

func (a *Allocator) showDiscussions(ctx context.Context, showID int64) ([]templates.Discussion, error) {
	threads, err := a.store.ThreadsByShow(ctx, showID)
	if err != nil {
		return nil, Wrap(ErrFatal, "megathread", "list threads", err)
	}
	discussions := make([]templates.Discussion, 0, len(threads))
	for _, thread := range threads {
		discussions = append(discussions, templates.Discussion{
			Episode: thread.Episode,
			URL:     thread.URL,
		})
	}
	return discussions, nil
}
