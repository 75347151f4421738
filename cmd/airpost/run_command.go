package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"airpost/internal/anilist"
	"airpost/internal/config"
	"airpost/internal/engine"
	"airpost/internal/lemmy"
	"airpost/internal/logging"
	"airpost/internal/store"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one full pipeline pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if dryRun {
				cfg.Options.Submit = false
			}
			if err := cfg.ValidateSubmit(); err != nil {
				return fmt.Errorf("validate config: %w", err)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			db, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			limiter := newRateLimiter(cfg)
			metadata := newMetadataClient(cfg, limiter, logger)
			platform := lemmy.NewClient(cfg.Lemmy,
				lemmy.WithLimiter(limiter),
				lemmy.WithLogger(logger))

			runner := engine.NewRunner(cfg, db, metadata, platform, logger, nil)
			summary, err := runner.Run(cmd.Context())
			if err != nil {
				if errors.Is(err, engine.ErrRunInProgress) {
					return errors.New("another airpost run is already in progress")
				}
				return err
			}

			printSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Classify and log without posting or mutating threads")
	return cmd
}

// newRateLimiter spreads options.ratelimit requests evenly over a minute.
func newRateLimiter(cfg *config.Config) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.Options.Ratelimit)), 1)
}

func newMetadataClient(cfg *config.Config, limiter *rate.Limiter, logger *slog.Logger) *anilist.Client {
	opts := []anilist.Option{
		anilist.WithBaseURL(cfg.AniList.BaseURL),
		anilist.WithLogger(logger),
	}
	if cfg.AniList.RequestTimeout > 0 {
		opts = append(opts, anilist.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.AniList.RequestTimeout) * time.Second,
		}))
	}
	return anilist.NewClient(limiter, opts...)
}

func printSummary(cmd *cobra.Command, summary *engine.Summary) {
	out := cmd.OutOrStdout()

	mode := "live"
	if summary.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(out, "Run %s finished in %s (%s)\n", summary.RunID, summary.Elapsed.Round(time.Millisecond), mode)
	fmt.Fprintf(out, "  shows: %d new, %d updated, %d disabled\n", summary.NewShows, summary.Updated, summary.Disabled)
	fmt.Fprintf(out, "  episodes: %d scheduled, %d due\n", summary.Episodes, summary.Due)
	fmt.Fprintf(out, "  dispatched: %d standalone, %d megathread, %d failed\n", summary.Standalone, summary.Relegated, summary.Failed)
	fmt.Fprintf(out, "  maintenance: %d threads refreshed, %d episodes expired, %d purged\n", summary.Refreshed, summary.Expired, summary.Purged)
}
