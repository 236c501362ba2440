package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/postchunk/internal/config"
	"github.com/dgallion1/postchunk/internal/store"
)

func indexCmd(newLogger func() *slog.Logger) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index every page of the content tree into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.ValidateIndex(); err != nil {
				return err
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer st.Close()

			fmt.Fprintf(os.Stderr, "Scanning %s\n", cfg.ContentDir)
			stats, err := newIndexer(cfg, st, newLogger()).IndexAll(cmd.Context(), force || cfg.ForceReindex, nil)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Done in %s. scanned=%d indexed=%d up_to_date=%d skipped=%d failed=%d sections=%d chunks=%d pruned=%d\n",
				stats.Duration.Round(time.Millisecond), stats.Scanned, stats.Indexed, stats.UpToDate, stats.Skipped,
				stats.Failed, stats.Sections, stats.Chunks, stats.Pruned)
			if len(stats.Errors) > 0 {
				fmt.Fprintf(os.Stderr, "Failures:\n  %s\n", strings.Join(stats.Errors, "\n  "))
				return fmt.Errorf("%d pages failed", stats.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reindex pages even when unchanged")
	return cmd
}
