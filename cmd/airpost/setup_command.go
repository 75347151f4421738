package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"airpost/internal/store"
)

func newSetupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the database and directories",
		Args:  cobra.NoArgs,
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

			stats, err := db.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read store stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database ready at %s\n", db.Path())
			fmt.Fprintf(out, "Tracking %d shows (%d enabled)\n", stats.Shows, stats.Enabled)
			return nil
		},
	}
}
