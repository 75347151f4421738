package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"airpost/internal/engine"
	"airpost/internal/logging"
	"airpost/internal/store"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Bulk-load upcoming episodes from a CSV file",
		Long: "Import reads rows of media id, episode number, and air time (unix seconds\n" +
			"or RFC 3339) below a header row. Shows missing from the database are fetched\n" +
			"and tracked as enabled.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportCSV(cmd, ctx, args[0])
		},
	}

	importCmd.AddCommand(newImportSeasonCommand(ctx))
	return importCmd
}

func runImportCSV(cmd *cobra.Command, ctx *commandContext, path string) error {
	if !strings.HasSuffix(strings.ToLower(path), ".csv") {
		return fmt.Errorf("expected a .csv file, got %s", path)
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	episodes, skipped, err := parseEpisodeCSV(file)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	metadata := newMetadataClient(cfg, newRateLimiter(cfg), logging.NewNop())
	out := cmd.OutOrStdout()

	recorded := 0
	for _, episode := range episodes {
		tracked, err := db.GetShow(cmd.Context(), episode.showID)
		if err != nil {
			return fmt.Errorf("load show %d: %w", episode.showID, err)
		}
		if tracked == nil {
			media, err := metadata.Show(cmd.Context(), episode.showID)
			if err != nil {
				fmt.Fprintf(out, "Skipping show %d: %v\n", episode.showID, err)
				skipped++
				continue
			}
			if _, _, err := trackShow(cmd.Context(), db, *media, true); err != nil {
				return err
			}
		} else if !tracked.Enabled {
			if err := db.SetShowEnabled(cmd.Context(), tracked.ID, true); err != nil {
				return fmt.Errorf("enable show %d: %w", tracked.ID, err)
			}
		}

		if err := db.UpsertUpcoming(cmd.Context(), episode.showID, episode.number, episode.airTime); err != nil {
			return fmt.Errorf("record episode %d of show %d: %w", episode.number, episode.showID, err)
		}
		recorded++
	}

	fmt.Fprintf(out, "Imported %d episodes (%d rows skipped)\n", recorded, skipped)
	return nil
}

type importedEpisode struct {
	showID  int64
	number  int
	airTime time.Time
}

// parseEpisodeCSV reads media id, episode number, and air time columns. The
// first row is treated as a header and malformed rows are counted, not fatal.
func parseEpisodeCSV(r io.Reader) ([]importedEpisode, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	var episodes []importedEpisode
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if len(row) < 3 {
			skipped++
			continue
		}

		showID, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil || showID <= 0 {
			skipped++
			continue
		}
		number, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil || number <= 0 {
			skipped++
			continue
		}
		airTime, err := parseAirTime(strings.TrimSpace(row[2]))
		if err != nil {
			skipped++
			continue
		}

		episodes = append(episodes, importedEpisode{showID: showID, number: number, airTime: airTime})
	}
	return episodes, skipped, nil
}

func parseAirTime(value string) (time.Time, error) {
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid air time %q", value)
	}
	return parsed.UTC(), nil
}

func newImportSeasonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "season <winter|spring|summer|fall> <year>",
		Short: "Track new shows from a broadcast season",
		Long: "Season lists every media entry airing in the given season and admits the\n" +
			"ones passing the configured discovery filters, the same filters a pipeline\n" +
			"run applies to the airing schedule.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[1])
			if err != nil || year < 1950 {
				return fmt.Errorf("invalid year %q", args[1])
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			db, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			metadata := newMetadataClient(cfg, newRateLimiter(cfg), logging.NewNop())
			media, err := metadata.Season(cmd.Context(), args[0], year)
			if err != nil {
				return fmt.Errorf("list season: %w", err)
			}

			discovery := engine.NewDiscovery(cfg.Discovery, db, logging.NewNop())
			result, err := discovery.Process(cmd.Context(), media)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Season %s %d: %d candidates, %d added, %d refreshed, %d disabled\n",
				strings.ToUpper(args[0]), year, len(media), result.Added, result.Updated, result.Disabled)
			return nil
		},
	}
}
