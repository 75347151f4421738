package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"airpost/internal/config"
	"airpost/internal/engine"
	"airpost/internal/store"
	"airpost/internal/testsupport"
)

func newPlanner(t *testing.T, cfg *config.Config, db *store.Store, platform *fakePlatform) *engine.Planner {
	t.Helper()
	return engine.NewPlanner(cfg, db, platform, nil, nil)
}

func mustDue(t *testing.T, db *store.Store, showID int64, number int, airTime time.Time) *store.Episode {
	t.Helper()
	ep := testsupport.MustUpsertEpisode(t, db, showID, number, airTime)
	if err := db.SetEpisodeState(context.Background(), ep.ID, store.EpisodeDue); err != nil {
		t.Fatalf("set due: %v", err)
	}
	ep.State = store.EpisodeDue
	return ep
}

func TestDispatchFirstEpisodeCreatesStandalonePost(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubmit())
	db := testsupport.MustOpenStore(t, cfg)
	platform := newFakePlatform()
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 1, "Fresh Show")
	ep := mustDue(t, db, show.ID, 1, time.Now().UTC().Add(-2*time.Hour))

	route, err := newPlanner(t, cfg, db, platform).Dispatch(ctx, ep)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if route != engine.RouteStandalone {
		t.Fatalf("route = %v, want standalone", route)
	}
	if platform.postCount() != 1 {
		t.Fatalf("posts = %d, want 1", platform.postCount())
	}

	got, _ := db.Episode(ctx, show.ID, 1)
	if got.State != store.EpisodePosted {
		t.Fatalf("state = %q, want posted", got.State)
	}
	thread, _ := db.ThreadForEpisode(ctx, ep.ID)
	if thread == nil || thread.Kind != store.ThreadStandalone {
		t.Fatalf("unexpected thread: %+v", thread)
	}

	for _, post := range platform.posts {
		if post.title != "Fresh Show - Episode 1 discussion" {
			t.Fatalf("post title = %q", post.title)
		}
	}
}

func TestDispatchFailureLeavesEpisodeDue(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubmit())
	db := testsupport.MustOpenStore(t, cfg)
	platform := newFakePlatform()
	platform.failCreatePost = true
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 2, "Unlucky Show")
	ep := mustDue(t, db, show.ID, 1, time.Now().UTC().Add(-2*time.Hour))

	_, err := newPlanner(t, cfg, db, platform).Dispatch(ctx, ep)
	if err == nil {
		t.Fatal("expected dispatch error")
	}
	if !errors.Is(err, engine.ErrDispatch) {
		t.Fatalf("error not classified as dispatch failure: %v", err)
	}
	if !engine.IsIsolated(err) {
		t.Fatal("dispatch failures should be isolated to the show")
	}

	got, _ := db.Episode(ctx, show.ID, 1)
	if got.State != store.EpisodeDue {
		t.Fatalf("state = %q, want due after failure", got.State)
	}
	if thread, _ := db.ThreadForEpisode(ctx, ep.ID); thread != nil {
		t.Fatal("no thread should exist after a failed post")
	}
}

func TestDispatchRelegatesToMegathreadAndRollsOver(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubmit(), testsupport.WithMegathreadCapacity(2))
	cfg.Options.EngagementLagHours = 0
	db := testsupport.MustOpenStore(t, cfg)
	platform := newFakePlatform()
	ctx := context.Background()
	planner := newPlanner(t, cfg, db, platform)

	show := testsupport.MustAddShow(t, db, 3, "Quiet Show")

	// Episode 1 went out as a standalone post that nobody engaged with.
	ep1 := mustDue(t, db, show.ID, 1, time.Now().UTC().Add(-72*time.Hour))
	if _, err := planner.Dispatch(ctx, ep1); err != nil {
		t.Fatalf("Dispatch ep1 failed: %v", err)
	}

	// Episodes 2 through 4 all relegate. With capacity 2, the third
	// relegated episode must land in a second megathread.
	for number := 2; number <= 4; number++ {
		ep := mustDue(t, db, show.ID, number, time.Now().UTC().Add(-time.Duration(72-number)*time.Hour))
		route, err := planner.Dispatch(ctx, ep)
		if err != nil {
			t.Fatalf("Dispatch ep%d failed: %v", number, err)
		}
		if route != engine.RouteMegathread {
			t.Fatalf("ep%d route = %v, want megathread", number, route)
		}
	}

	latest, err := db.LatestMegathread(ctx, show.ID)
	if err != nil {
		t.Fatalf("LatestMegathread failed: %v", err)
	}
	if latest == nil || latest.Seq != 2 {
		t.Fatalf("latest megathread = %+v, want seq 2", latest)
	}
	if !latest.Open || latest.EpisodeCount != 1 {
		t.Fatalf("second megathread = %+v, want open with one episode", latest)
	}

	open, err := db.OpenMegathread(ctx, show.ID)
	if err != nil {
		t.Fatalf("OpenMegathread failed: %v", err)
	}
	if open == nil || open.Seq != 2 {
		t.Fatalf("open megathread = %+v, want seq 2", open)
	}

	// One standalone post, two megathread posts, three comments.
	if platform.postCount() != 3 {
		t.Fatalf("posts = %d, want 3", platform.postCount())
	}
	if platform.commentCount() != 3 {
		t.Fatalf("comments = %d, want 3", platform.commentCount())
	}

	ep4, _ := db.Episode(ctx, show.ID, 4)
	thread, _ := db.ThreadForEpisode(ctx, ep4.ID)
	if thread == nil || thread.Kind != store.ThreadMegathreadComment {
		t.Fatalf("episode 4 thread = %+v, want megathread comment", thread)
	}
}

func TestDispatchPromotesAfterEngagementRecovers(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubmit())
	cfg.Options.EngagementLagHours = 0
	cfg.Options.MinUpvotes = 5
	cfg.Options.MinComments = 1
	db := testsupport.MustOpenStore(t, cfg)
	platform := newFakePlatform()
	ctx := context.Background()
	planner := newPlanner(t, cfg, db, platform)

	show := testsupport.MustAddShow(t, db, 4, "Comeback Show")

	ep1 := mustDue(t, db, show.ID, 1, time.Now().UTC().Add(-96*time.Hour))
	if _, err := planner.Dispatch(ctx, ep1); err != nil {
		t.Fatalf("Dispatch ep1 failed: %v", err)
	}

	// Episode 2 relegates on zero engagement.
	ep2 := mustDue(t, db, show.ID, 2, time.Now().UTC().Add(-48*time.Hour))
	route, err := planner.Dispatch(ctx, ep2)
	if err != nil {
		t.Fatalf("Dispatch ep2 failed: %v", err)
	}
	if route != engine.RouteMegathread {
		t.Fatalf("ep2 route = %v, want megathread", route)
	}

	// The megathread comment picks up strong engagement.
	thread2, _ := db.ThreadForEpisode(ctx, ep2.ID)
	platform.setEngagement(thread2.URL, 10, 5)

	ep3 := mustDue(t, db, show.ID, 3, time.Now().UTC().Add(-24*time.Hour))
	route, err = planner.Dispatch(ctx, ep3)
	if err != nil {
		t.Fatalf("Dispatch ep3 failed: %v", err)
	}
	if route != engine.RouteStandalone {
		t.Fatalf("ep3 route = %v, want standalone promotion", route)
	}

	thread3, _ := db.ThreadForEpisode(ctx, ep3.ID)
	if thread3 == nil || thread3.Kind != store.ThreadStandalone {
		t.Fatalf("episode 3 thread = %+v, want standalone", thread3)
	}
}

func TestDispatchDisableInactive(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubmit())
	cfg.Options.EngagementLagHours = 0
	cfg.Options.DisableInactive = true
	db := testsupport.MustOpenStore(t, cfg)
	platform := newFakePlatform()
	ctx := context.Background()
	planner := newPlanner(t, cfg, db, platform)

	show := testsupport.MustAddShow(t, db, 5, "Fading Show")
	ep1 := mustDue(t, db, show.ID, 1, time.Now().UTC().Add(-96*time.Hour))
	if _, err := planner.Dispatch(ctx, ep1); err != nil {
		t.Fatalf("Dispatch ep1 failed: %v", err)
	}

	ep2 := mustDue(t, db, show.ID, 2, time.Now().UTC().Add(-48*time.Hour))
	route, err := planner.Dispatch(ctx, ep2)
	if err != nil {
		t.Fatalf("Dispatch ep2 failed: %v", err)
	}
	if route != engine.RouteDisable {
		t.Fatalf("ep2 route = %v, want disable", route)
	}

	got, _ := db.GetShow(ctx, show.ID)
	if got.Enabled {
		t.Fatal("expected show disabled")
	}
	ep, _ := db.Episode(ctx, show.ID, 2)
	if ep.State != store.EpisodeDue {
		t.Fatalf("episode 2 state = %q, want due (left for retention)", ep.State)
	}
	if thread, _ := db.ThreadForEpisode(ctx, ep.ID); thread != nil {
		t.Fatal("no thread should be created for a disabled show")
	}
}

func TestDispatchDryRunLeavesEverythingUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	platform := newFakePlatform()
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 6, "Preview Show")
	ep := mustDue(t, db, show.ID, 1, time.Now().UTC().Add(-2*time.Hour))

	route, err := newPlanner(t, cfg, db, platform).Dispatch(ctx, ep)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if route != engine.RouteStandalone {
		t.Fatalf("route = %v, want standalone classification", route)
	}
	if platform.postCount() != 0 || platform.commentCount() != 0 {
		t.Fatal("dry run must not write to the platform")
	}

	got, _ := db.Episode(ctx, show.ID, 1)
	if got.State != store.EpisodeDue {
		t.Fatalf("state = %q, want due after dry run", got.State)
	}
}

func TestRefreshStaleThreadsRewritesCrossReferences(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubmit())
	db := testsupport.MustOpenStore(t, cfg)
	platform := newFakePlatform()
	ctx := context.Background()
	planner := newPlanner(t, cfg, db, platform)

	show := testsupport.MustAddShow(t, db, 7, "Serial Show")
	for number := 1; number <= 3; number++ {
		ep := mustDue(t, db, show.ID, number, time.Now().UTC().Add(-time.Duration(4-number)*time.Hour))
		if _, err := planner.Dispatch(ctx, ep); err != nil {
			t.Fatalf("Dispatch ep%d failed: %v", number, err)
		}
	}

	refreshed, err := planner.RefreshStaleThreads(ctx)
	if err != nil {
		t.Fatalf("RefreshStaleThreads failed: %v", err)
	}
	if refreshed != 2 {
		t.Fatalf("refreshed = %d, want the two older posts", refreshed)
	}

	stale, _ := db.StaleStandaloneThreads(ctx)
	if len(stale) != 0 {
		t.Fatalf("expected no stale threads left, got %d", len(stale))
	}

	// The first episode's post body now links all three discussions.
	ep1, _ := db.Episode(ctx, show.ID, 1)
	thread1, _ := db.ThreadForEpisode(ctx, ep1.ID)
	body := platform.posts[thread1.URL].body
	if !strings.Contains(body, "[Episode 3]") {
		t.Fatalf("expected refreshed body to link episode 3:\n%s", body)
	}
}
