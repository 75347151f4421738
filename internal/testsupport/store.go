package testsupport

import (
	"context"
	"testing"
	"time"

	"airpost/internal/config"
	"airpost/internal/store"
)

// MustOpenStore opens a store backed by the test config's data directory and
// registers cleanup so the database is closed when the test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	db, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return db
}

// MustAddShow inserts a show fixture and returns it with defaults applied.
func MustAddShow(t testing.TB, db *store.Store, id int64, name string) *store.Show {
	t.Helper()

	show := &store.Show{
		ID:      id,
		Name:    name,
		Type:    store.TypeTV,
		Country: "JP",
		Airing:  store.AiringReleasing,
		Enabled: true,
	}
	if err := db.AddShow(context.Background(), show); err != nil {
		t.Fatalf("add show %d: %v", id, err)
	}
	return show
}

// MustUpsertEpisode records an upcoming episode and returns the stored row.
func MustUpsertEpisode(t testing.TB, db *store.Store, showID int64, number int, airTime time.Time) *store.Episode {
	t.Helper()

	ctx := context.Background()
	if err := db.UpsertUpcoming(ctx, showID, number, airTime); err != nil {
		t.Fatalf("upsert episode %d/%d: %v", showID, number, err)
	}
	ep, err := db.Episode(ctx, showID, number)
	if err != nil {
		t.Fatalf("load episode %d/%d: %v", showID, number, err)
	}
	return ep
}
