package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/postchunk/internal/config"
	"github.com/dgallion1/postchunk/internal/mcpserver"
	"github.com/dgallion1/postchunk/internal/pipeline"
	"github.com/dgallion1/postchunk/internal/store"
)

func mcpCmd(newLogger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve search_sections, get_section and index_content over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := newLogger()

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer st.Close()

			var ix *pipeline.Indexer
			if err := cfg.ValidateIndex(); err == nil {
				ix = newIndexer(cfg, st, log)
			} else {
				log.Warn("index_content disabled", "error", err)
			}
			return mcpserver.New(st, ix, cfg.SearchLimit, log).Serve(cmd.Context())
		},
	}
}
