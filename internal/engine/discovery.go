package engine

import (
	"context"
	"log/slog"

	"airpost/internal/anilist"
	"airpost/internal/config"
	"airpost/internal/logging"
	"airpost/internal/store"
)

// Discovery admits newly seen media into tracking and keeps tracked show
// metadata fresh.
type Discovery struct {
	cfg    config.Discovery
	store  *store.Store
	logger *slog.Logger
}

// NewDiscovery builds a discovery filter over the given store.
func NewDiscovery(cfg config.Discovery, st *store.Store, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Discovery{cfg: cfg, store: st, logger: logger}
}

// DiscoveryResult summarizes one discovery pass.
type DiscoveryResult struct {
	Added    int
	Updated  int
	Disabled int
}

// Admitted reports whether a candidate passes the configured filters. The
// decision is independent of store state; tracked-media skipping happens in
// Process.
func (d *Discovery) Admitted(media anilist.Media) bool {
	if !d.cfg.Enabled {
		return false
	}
	if media.IsAdult && !d.cfg.AllowNSFW {
		return false
	}
	if !containsString(d.cfg.Countries, media.Country) {
		return false
	}
	return containsString(d.cfg.ShowTypes, media.Format)
}

// Process walks a batch of candidate media. Untracked candidates passing the
// filter are inserted with the configured default enablement and their
// synonyms recorded as aliases. Tracked media is refreshed in place, and a
// tracked show that has finished or been cancelled is disabled.
func (d *Discovery) Process(ctx context.Context, candidates []anilist.Media) (DiscoveryResult, error) {
	var result DiscoveryResult

	seen := make(map[int64]bool, len(candidates))
	for _, media := range candidates {
		if media.ID == 0 || seen[media.ID] {
			continue
		}
		seen[media.ID] = true

		existing, err := d.store.GetShow(ctx, media.ID)
		if err != nil {
			return result, Wrap(ErrFatal, "discovery", "load show", err)
		}

		if existing != nil {
			show := media.ToShow()
			if err := d.store.UpdateShow(ctx, show); err != nil {
				return result, Wrap(ErrFatal, "discovery", "update show", err)
			}
			result.Updated++

			if show.Airing.Ended() && existing.Enabled {
				if err := d.store.SetShowEnabled(ctx, show.ID, false); err != nil {
					return result, Wrap(ErrFatal, "discovery", "disable ended show", err)
				}
				result.Disabled++
				d.logger.Info("disabled ended show",
					logging.Int64("show_id", show.ID),
					logging.String("name", show.Name),
					logging.String("status", string(show.Airing)))
			}
			continue
		}

		if !d.Admitted(media) {
			continue
		}

		show := media.ToShow()
		show.Enabled = d.cfg.DefaultEnabled
		if err := d.store.AddShow(ctx, show); err != nil {
			return result, Wrap(ErrFatal, "discovery", "add show", err)
		}
		for _, synonym := range media.Synonyms {
			if err := d.store.AddAlias(ctx, show.ID, synonym); err != nil {
				return result, Wrap(ErrFatal, "discovery", "add alias", err)
			}
		}
		result.Added++
		d.logger.Info("discovered new show",
			logging.Int64("show_id", show.ID),
			logging.String("name", show.Name),
			logging.Bool("enabled", show.Enabled))
	}

	return result, nil
}

func containsString(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}
