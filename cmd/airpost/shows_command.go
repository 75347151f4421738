package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"airpost/internal/anilist"
	"airpost/internal/logging"
	"airpost/internal/store"
)

func newShowsCommand(ctx *commandContext) *cobra.Command {
	var filterFlag string

	showsCmd := &cobra.Command{
		Use:   "shows",
		Short: "List and manage tracked shows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowsList(cmd, ctx, filterFlag)
		},
	}
	showsCmd.Flags().StringVar(&filterFlag, "filter", "all", "Filter listing: all, enabled, disabled")

	showsCmd.AddCommand(newShowsAddCommand(ctx))
	showsCmd.AddCommand(newShowsEnableCommand(ctx))
	showsCmd.AddCommand(newShowsDisableCommand(ctx))
	showsCmd.AddCommand(newShowsRemoveCommand(ctx))
	showsCmd.AddCommand(newShowsUpdateCommand(ctx))

	return showsCmd
}

func runShowsList(cmd *cobra.Command, ctx *commandContext, filterFlag string) error {
	filter, err := parseShowFilter(filterFlag)
	if err != nil {
		return err
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

	shows, err := db.Shows(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("list shows: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(shows) == 0 {
		fmt.Fprintln(out, "No tracked shows")
		return nil
	}

	rows := make([][]string, 0, len(shows))
	for _, show := range shows {
		rows = append(rows, []string{
			strconv.FormatInt(show.ID, 10),
			show.Name,
			show.NameEN,
			string(show.Type),
			string(show.Airing),
			yesNo(show.Enabled),
		})
	}

	fmt.Fprintln(out, heading(out, fmt.Sprintf("Tracked shows (%d)", len(shows))))
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Name", "English", "Type", "Status", "Enabled"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	return nil
}

func parseShowFilter(value string) (store.ShowFilter, error) {
	switch value {
	case "", "all":
		return store.ShowFilterAll, nil
	case "enabled":
		return store.ShowFilterEnabled, nil
	case "disabled":
		return store.ShowFilterDisabled, nil
	default:
		return store.ShowFilterAll, fmt.Errorf("unknown filter %q (expected all, enabled, or disabled)", value)
	}
}

func newShowsAddCommand(ctx *commandContext) *cobra.Command {
	var disabled bool

	cmd := &cobra.Command{
		Use:   "add <media-id>",
		Short: "Track a show by its AniList id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaID, err := parseShowID(args[0])
			if err != nil {
				return err
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
			media, err := metadata.Show(cmd.Context(), mediaID)
			if err != nil {
				return fmt.Errorf("look up media %d: %w", mediaID, err)
			}

			show, created, err := trackShow(cmd.Context(), db, *media, !disabled)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintf(out, "Added %s (%d), enabled: %s\n", show.Name, show.ID, yesNo(show.Enabled))
			} else {
				fmt.Fprintf(out, "Show %s (%d) already tracked, metadata refreshed\n", show.Name, show.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&disabled, "disabled", false, "Track the show without enabling discussion posts")
	return cmd
}

func newShowsEnableCommand(ctx *commandContext) *cobra.Command {
	return newShowsToggleCommand(ctx, "enable", "Enable discussion posts for a show", true)
}

func newShowsDisableCommand(ctx *commandContext) *cobra.Command {
	return newShowsToggleCommand(ctx, "disable", "Disable discussion posts for a show", false)
}

func newShowsToggleCommand(ctx *commandContext, use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showID, err := parseShowID(args[0])
			if err != nil {
				return err
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

			show, err := db.GetShow(cmd.Context(), showID)
			if err != nil {
				return fmt.Errorf("load show %d: %w", showID, err)
			}
			if show == nil {
				return fmt.Errorf("show %d is not tracked", showID)
			}
			if err := db.SetShowEnabled(cmd.Context(), showID, enabled); err != nil {
				return fmt.Errorf("update show %d: %w", showID, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Show %s (%d) enabled: %s\n", show.Name, showID, yesNo(enabled))
			return nil
		},
	}
}

func newShowsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a show and its episodes and threads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showID, err := parseShowID(args[0])
			if err != nil {
				return err
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

			removed, err := db.RemoveShow(cmd.Context(), showID)
			if err != nil {
				return fmt.Errorf("remove show %d: %w", showID, err)
			}
			if !removed {
				return fmt.Errorf("show %d is not tracked", showID)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed show %d\n", showID)
			return nil
		},
	}
}

func newShowsUpdateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "update [id]",
		Short: "Refresh metadata for one show or all enabled shows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			db, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			var shows []*store.Show
			if len(args) == 1 {
				showID, err := parseShowID(args[0])
				if err != nil {
					return err
				}
				show, err := db.GetShow(cmd.Context(), showID)
				if err != nil {
					return fmt.Errorf("load show %d: %w", showID, err)
				}
				if show == nil {
					return fmt.Errorf("show %d is not tracked", showID)
				}
				shows = []*store.Show{show}
			} else {
				shows, err = db.Shows(cmd.Context(), store.ShowFilterEnabled)
				if err != nil {
					return fmt.Errorf("list shows: %w", err)
				}
			}

			metadata := newMetadataClient(cfg, newRateLimiter(cfg), logging.NewNop())
			out := cmd.OutOrStdout()

			updated := 0
			disabled := 0
			for _, tracked := range shows {
				media, err := metadata.Show(cmd.Context(), tracked.ID)
				if err != nil {
					fmt.Fprintf(out, "Skipping %s (%d): %v\n", tracked.Name, tracked.ID, err)
					continue
				}

				show, _, err := trackShow(cmd.Context(), db, *media, tracked.Enabled)
				if err != nil {
					return err
				}
				updated++

				if show.Airing.Ended() && tracked.Enabled {
					if err := db.SetShowEnabled(cmd.Context(), show.ID, false); err != nil {
						return fmt.Errorf("disable ended show %d: %w", show.ID, err)
					}
					disabled++
					fmt.Fprintf(out, "Disabled %s (%d): airing status %s\n", show.Name, show.ID, show.Airing)
				}
			}

			fmt.Fprintf(out, "Updated %d shows (%d disabled)\n", updated, disabled)
			return nil
		},
	}
}

// trackShow inserts or refreshes one show record from fetched metadata and
// records its synonyms as lookup aliases. The enabled argument only applies
// to newly tracked shows.
func trackShow(ctx context.Context, db *store.Store, media anilist.Media, enabled bool) (*store.Show, bool, error) {
	existing, err := db.GetShow(ctx, media.ID)
	if err != nil {
		return nil, false, fmt.Errorf("load show %d: %w", media.ID, err)
	}

	show := media.ToShow()
	created := existing == nil
	if created {
		show.Enabled = enabled
		if err := db.AddShow(ctx, show); err != nil {
			return nil, false, fmt.Errorf("add show %d: %w", media.ID, err)
		}
	} else {
		show.Enabled = existing.Enabled
		if err := db.UpdateShow(ctx, show); err != nil {
			return nil, false, fmt.Errorf("update show %d: %w", media.ID, err)
		}
	}

	for _, synonym := range media.Synonyms {
		if err := db.AddAlias(ctx, show.ID, synonym); err != nil {
			return nil, false, fmt.Errorf("add alias for show %d: %w", show.ID, err)
		}
	}
	return show, created, nil
}

func parseShowID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid show id %q", arg)
	}
	return id, nil
}
