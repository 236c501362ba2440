package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/postchunk/internal/config"
	"github.com/dgallion1/postchunk/internal/pipeline"
	"github.com/dgallion1/postchunk/internal/scan"
)

func sectionsCmd(newLogger func() *slog.Logger) *cobra.Command {
	var relPath string

	cmd := &cobra.Command{
		Use:   "sections <file>",
		Short: "Print the sections of one HTML or Markdown page as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if relPath == "" {
				relPath = scan.RelPath(filepath.Base(args[0]))
			}
			proc := pipeline.NewProcessor(nil, newSectioner(cfg), newLogger(), pipeline.Options{})
			sections, _, err := proc.Sections(f, args[0], relPath)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sections)
		},
	}

	cmd.Flags().StringVar(&relPath, "rel-path", "", "Site path of the page, used for links (default: file name without extension)")
	return cmd
}
