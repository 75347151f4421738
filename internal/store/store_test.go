package store_test

import (
	"context"
	"testing"
	"time"

	"airpost/internal/store"
	"airpost/internal/testsupport"
)

func TestAddShowDropsRedundantEnglishName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	show := &store.Show{
		ID:      100,
		Name:    "Shingeki  no &  Kyojin",
		NameEN:  "Shingeki no and Kyojin",
		Enabled: true,
	}
	if err := db.AddShow(ctx, show); err != nil {
		t.Fatalf("AddShow failed: %v", err)
	}

	got, err := db.GetShow(ctx, 100)
	if err != nil {
		t.Fatalf("GetShow failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected show, got nil")
	}
	if got.Name != "Shingeki no and Kyojin" {
		t.Fatalf("unexpected sanitized name: %q", got.Name)
	}
	if got.NameEN != "" {
		t.Fatalf("expected redundant English name dropped, got %q", got.NameEN)
	}
	if got.Type != store.TypeUnknown {
		t.Fatalf("expected default type UNKNOWN, got %q", got.Type)
	}
	if got.Airing != store.AiringReleasing {
		t.Fatalf("expected default airing RELEASING, got %q", got.Airing)
	}
}

func TestShowByTitleMatchesAliasesNormalized(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 200, "Yuuki Yuuna wa Yuusha de Aru")
	if err := db.AddAlias(ctx, show.ID, "YuYuYu"); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}

	// Alias equal to the show's own title after normalization is skipped.
	if err := db.AddAlias(ctx, show.ID, "Yuki Yuna wa Yusha de Aru"); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}
	aliases, err := db.Aliases(ctx, show.ID)
	if err != nil {
		t.Fatalf("Aliases failed: %v", err)
	}
	if len(aliases) != 1 || aliases[0] != "YuYuYu" {
		t.Fatalf("unexpected aliases: %v", aliases)
	}

	for _, title := range []string{"yuyuyu", "YUYUYU", "Yuki Yuna wa Yusha de Aru"} {
		got, err := db.ShowByTitle(ctx, title)
		if err != nil {
			t.Fatalf("ShowByTitle(%q) failed: %v", title, err)
		}
		if got == nil || got.ID != show.ID {
			t.Fatalf("ShowByTitle(%q) = %v, want show %d", title, got, show.ID)
		}
	}

	got, err := db.ShowByTitle(ctx, "unrelated title")
	if err != nil {
		t.Fatalf("ShowByTitle failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no match, got show %d", got.ID)
	}
}

func TestShowsFilterAndEnableToggle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustAddShow(t, db, 1, "Alpha")
	beta := testsupport.MustAddShow(t, db, 2, "Beta")
	if err := db.SetShowEnabled(ctx, beta.ID, false); err != nil {
		t.Fatalf("SetShowEnabled failed: %v", err)
	}

	enabled, err := db.Shows(ctx, store.ShowFilterEnabled)
	if err != nil {
		t.Fatalf("Shows failed: %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != 1 {
		t.Fatalf("unexpected enabled shows: %v", enabled)
	}

	disabled, err := db.Shows(ctx, store.ShowFilterDisabled)
	if err != nil {
		t.Fatalf("Shows failed: %v", err)
	}
	if len(disabled) != 1 || disabled[0].ID != 2 {
		t.Fatalf("unexpected disabled shows: %v", disabled)
	}
}

func TestRemoveShowCascades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 300, "Cascade Test")
	ep := testsupport.MustUpsertEpisode(t, db, show.ID, 1, time.Now().UTC().Add(-time.Hour))
	if _, err := db.MarkPosted(ctx, ep, store.ThreadStandalone, "https://lemmy.test/post/1"); err != nil {
		t.Fatalf("MarkPosted failed: %v", err)
	}

	removed, err := db.RemoveShow(ctx, show.ID)
	if err != nil {
		t.Fatalf("RemoveShow failed: %v", err)
	}
	if !removed {
		t.Fatal("expected show removal to report success")
	}

	episodes, err := db.EpisodesByShow(ctx, show.ID)
	if err != nil {
		t.Fatalf("EpisodesByShow failed: %v", err)
	}
	if len(episodes) != 0 {
		t.Fatalf("expected cascaded episode delete, got %d rows", len(episodes))
	}
	threads, err := db.ThreadsByShow(ctx, show.ID)
	if err != nil {
		t.Fatalf("ThreadsByShow failed: %v", err)
	}
	if len(threads) != 0 {
		t.Fatalf("expected cascaded thread delete, got %d rows", len(threads))
	}
}

func TestUpsertUpcomingRefreshesAirTime(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 400, "Delay Prone")
	original := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	testsupport.MustUpsertEpisode(t, db, show.ID, 3, original)

	shifted := original.Add(7 * 24 * time.Hour)
	if err := db.UpsertUpcoming(ctx, show.ID, 3, shifted); err != nil {
		t.Fatalf("UpsertUpcoming failed: %v", err)
	}

	ep, err := db.Episode(ctx, show.ID, 3)
	if err != nil {
		t.Fatalf("Episode failed: %v", err)
	}
	if !ep.AirTime.Equal(shifted) {
		t.Fatalf("air time = %v, want %v", ep.AirTime, shifted)
	}
	if ep.State != store.EpisodeUpcoming {
		t.Fatalf("state = %q, want upcoming", ep.State)
	}
}

func TestUpsertUpcomingLeavesPostedAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 410, "Already Posted")
	aired := time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)
	ep := testsupport.MustUpsertEpisode(t, db, show.ID, 1, aired)
	if _, err := db.MarkPosted(ctx, ep, store.ThreadStandalone, "https://lemmy.test/post/2"); err != nil {
		t.Fatalf("MarkPosted failed: %v", err)
	}

	if err := db.UpsertUpcoming(ctx, show.ID, 1, aired.Add(48*time.Hour)); err != nil {
		t.Fatalf("UpsertUpcoming failed: %v", err)
	}

	got, err := db.Episode(ctx, show.ID, 1)
	if err != nil {
		t.Fatalf("Episode failed: %v", err)
	}
	if got.State != store.EpisodePosted {
		t.Fatalf("state = %q, want posted", got.State)
	}
	if !got.AirTime.Equal(aired) {
		t.Fatalf("air time changed to %v, want %v", got.AirTime, aired)
	}
}

func TestEpisodesInStateOrdersByAirTime(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.MustAddShow(t, db, 500, "Early Show")
	b := testsupport.MustAddShow(t, db, 501, "Late Show")
	base := time.Date(2026, 9, 5, 12, 0, 0, 0, time.UTC)
	testsupport.MustUpsertEpisode(t, db, b.ID, 1, base.Add(2*time.Hour))
	testsupport.MustUpsertEpisode(t, db, a.ID, 1, base)
	testsupport.MustUpsertEpisode(t, db, a.ID, 2, base.Add(time.Hour))

	episodes, err := db.EpisodesInState(ctx, store.EpisodeUpcoming)
	if err != nil {
		t.Fatalf("EpisodesInState failed: %v", err)
	}
	if len(episodes) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(episodes))
	}
	for i := 1; i < len(episodes); i++ {
		if episodes[i].AirTime.Before(episodes[i-1].AirTime) {
			t.Fatalf("episodes not ordered by air time: %v before %v",
				episodes[i].AirTime, episodes[i-1].AirTime)
		}
	}
}

func TestMarkPostedMarksOlderThreadsStale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 600, "Weekly Show")
	base := time.Date(2026, 8, 1, 15, 0, 0, 0, time.UTC)
	ep1 := testsupport.MustUpsertEpisode(t, db, show.ID, 1, base)
	ep2 := testsupport.MustUpsertEpisode(t, db, show.ID, 2, base.Add(7*24*time.Hour))

	first, err := db.MarkPosted(ctx, ep1, store.ThreadStandalone, "https://lemmy.test/post/10")
	if err != nil {
		t.Fatalf("MarkPosted failed: %v", err)
	}
	second, err := db.MarkPosted(ctx, ep2, store.ThreadStandalone, "https://lemmy.test/post/11")
	if err != nil {
		t.Fatalf("MarkPosted failed: %v", err)
	}

	stale, err := db.StaleStandaloneThreads(ctx)
	if err != nil {
		t.Fatalf("StaleStandaloneThreads failed: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != first.ID {
		t.Fatalf("expected only the first thread stale, got %v", stale)
	}

	fresh, err := db.ThreadForEpisode(ctx, ep2.ID)
	if err != nil {
		t.Fatalf("ThreadForEpisode failed: %v", err)
	}
	if fresh == nil || fresh.ID != second.ID || fresh.Stale {
		t.Fatalf("expected fresh second thread, got %v", fresh)
	}

	if err := db.ClearThreadStale(ctx, first.ID); err != nil {
		t.Fatalf("ClearThreadStale failed: %v", err)
	}
	stale, err = db.StaleStandaloneThreads(ctx)
	if err != nil {
		t.Fatalf("StaleStandaloneThreads failed: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected no stale threads after clear, got %d", len(stale))
	}
}

func TestMarkPostedTransitionsEpisode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 610, "Transition Show")
	ep := testsupport.MustUpsertEpisode(t, db, show.ID, 5, time.Now().UTC().Add(-time.Hour))

	thread, err := db.MarkPosted(ctx, ep, store.ThreadMegathreadComment, "https://lemmy.test/comment/20")
	if err != nil {
		t.Fatalf("MarkPosted failed: %v", err)
	}
	if thread.Kind != store.ThreadMegathreadComment {
		t.Fatalf("kind = %q, want megathread_comment", thread.Kind)
	}

	got, err := db.Episode(ctx, show.ID, 5)
	if err != nil {
		t.Fatalf("Episode failed: %v", err)
	}
	if got.State != store.EpisodePosted {
		t.Fatalf("state = %q, want posted", got.State)
	}

	latest, err := db.LatestPostedEpisode(ctx, show.ID)
	if err != nil {
		t.Fatalf("LatestPostedEpisode failed: %v", err)
	}
	if latest == nil || latest.Number != 5 {
		t.Fatalf("unexpected latest posted episode: %v", latest)
	}
}

func TestUpdateThreadEngagement(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 620, "Engaged Show")
	ep := testsupport.MustUpsertEpisode(t, db, show.ID, 1, time.Now().UTC().Add(-time.Hour))
	thread, err := db.MarkPosted(ctx, ep, store.ThreadStandalone, "https://lemmy.test/post/30")
	if err != nil {
		t.Fatalf("MarkPosted failed: %v", err)
	}

	checked := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	if err := db.UpdateThreadEngagement(ctx, thread.ID, 42, 17, checked); err != nil {
		t.Fatalf("UpdateThreadEngagement failed: %v", err)
	}

	got, err := db.ThreadForEpisode(ctx, ep.ID)
	if err != nil {
		t.Fatalf("ThreadForEpisode failed: %v", err)
	}
	if got.Votes != 42 || got.Comments != 17 {
		t.Fatalf("engagement = %d/%d, want 42/17", got.Votes, got.Comments)
	}
	if got.CheckedAt == nil || !got.CheckedAt.Equal(checked) {
		t.Fatalf("checked at = %v, want %v", got.CheckedAt, checked)
	}
}

func TestMegathreadLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 700, "Quiet Show")

	open, err := db.OpenMegathread(ctx, show.ID)
	if err != nil {
		t.Fatalf("OpenMegathread failed: %v", err)
	}
	if open != nil {
		t.Fatalf("expected no open megathread, got %v", open)
	}

	first, err := db.CreateMegathread(ctx, show.ID, 1, "https://lemmy.test/post/40")
	if err != nil {
		t.Fatalf("CreateMegathread failed: %v", err)
	}
	if first.Seq != 1 || !first.Open {
		t.Fatalf("unexpected megathread: %+v", first)
	}

	count, err := db.IncrementMegathreadCount(ctx, show.ID, 1)
	if err != nil {
		t.Fatalf("IncrementMegathreadCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	count, err = db.IncrementMegathreadCount(ctx, show.ID, 1)
	if err != nil {
		t.Fatalf("IncrementMegathreadCount failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	if err := db.CloseMegathread(ctx, show.ID, 1); err != nil {
		t.Fatalf("CloseMegathread failed: %v", err)
	}
	open, err = db.OpenMegathread(ctx, show.ID)
	if err != nil {
		t.Fatalf("OpenMegathread failed: %v", err)
	}
	if open != nil {
		t.Fatalf("expected closed megathread to stay closed, got %v", open)
	}

	second, err := db.CreateMegathread(ctx, show.ID, 2, "https://lemmy.test/post/41")
	if err != nil {
		t.Fatalf("CreateMegathread failed: %v", err)
	}
	latest, err := db.LatestMegathread(ctx, show.ID)
	if err != nil {
		t.Fatalf("LatestMegathread failed: %v", err)
	}
	if latest == nil || latest.Seq != second.Seq {
		t.Fatalf("latest megathread seq = %v, want %d", latest, second.Seq)
	}
}

func TestExpireAndPurgeEpisodes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 800, "Old Show")
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	testsupport.MustUpsertEpisode(t, db, show.ID, 1, cutoff.Add(-48*time.Hour))
	testsupport.MustUpsertEpisode(t, db, show.ID, 2, cutoff.Add(48*time.Hour))
	posted := testsupport.MustUpsertEpisode(t, db, show.ID, 3, cutoff.Add(-24*time.Hour))
	if _, err := db.MarkPosted(ctx, posted, store.ThreadStandalone, "https://lemmy.test/post/50"); err != nil {
		t.Fatalf("MarkPosted failed: %v", err)
	}

	expired, err := db.ExpireEpisodesBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("ExpireEpisodesBefore failed: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}

	got, err := db.Episode(ctx, show.ID, 3)
	if err != nil {
		t.Fatalf("Episode failed: %v", err)
	}
	if got.State != store.EpisodePosted {
		t.Fatalf("posted episode state = %q, want posted", got.State)
	}

	purged, err := db.DeleteExpiredEpisodes(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredEpisodes failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}

	episodes, err := db.EpisodesByShow(ctx, show.ID)
	if err != nil {
		t.Fatalf("EpisodesByShow failed: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 remaining episodes, got %d", len(episodes))
	}
	if episodes[0].Number != 2 && episodes[1].Number != 2 {
		t.Fatalf("expected episode 2 to survive, got %v", episodes)
	}
}

func TestStatsCountsStates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	show := testsupport.MustAddShow(t, db, 900, "Stat Show")
	other := testsupport.MustAddShow(t, db, 901, "Other Show")
	if err := db.SetShowEnabled(ctx, other.ID, false); err != nil {
		t.Fatalf("SetShowEnabled failed: %v", err)
	}

	now := time.Now().UTC()
	testsupport.MustUpsertEpisode(t, db, show.ID, 1, now.Add(time.Hour))
	ep := testsupport.MustUpsertEpisode(t, db, show.ID, 2, now.Add(-time.Hour))
	if _, err := db.MarkPosted(ctx, ep, store.ThreadStandalone, "https://lemmy.test/post/60"); err != nil {
		t.Fatalf("MarkPosted failed: %v", err)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Shows != 2 || stats.Enabled != 1 {
		t.Fatalf("shows = %d enabled = %d, want 2/1", stats.Shows, stats.Enabled)
	}
	if stats.Episodes[store.EpisodeUpcoming] != 1 {
		t.Fatalf("upcoming = %d, want 1", stats.Episodes[store.EpisodeUpcoming])
	}
	if stats.Episodes[store.EpisodePosted] != 1 {
		t.Fatalf("posted = %d, want 1", stats.Episodes[store.EpisodePosted])
	}
}
