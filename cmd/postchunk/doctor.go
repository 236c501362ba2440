package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/postchunk/internal/config"
	"github.com/dgallion1/postchunk/internal/scan"
	"github.com/dgallion1/postchunk/internal/store"
)

func doctorCmd() *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify directories, DB, FTS5, and show stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			fmt.Println("=== Directories ===")
			checkDir("Content", cfg.ContentDir)
			checkDir("HTML", cfg.HTMLDir)

			fmt.Println("\n=== File Scan ===")
			if files, err := scan.Scan(cfg.ContentDir, cfg.HTMLDir); err != nil {
				fmt.Printf("  scan error: %v\n", err)
			} else {
				rendered := 0
				for _, f := range files {
					if f.HasHTML {
						rendered++
					}
				}
				fmt.Printf("  Markdown pages: %d\n", len(files))
				fmt.Printf("  With HTML:      %d\n", rendered)
			}

			fmt.Println("\n=== Database ===")
			fmt.Printf("  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'postchunk index' first)")
				return nil
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer st.Close()

			counts, err := st.Counts(cmd.Context())
			if err != nil {
				return fmt.Errorf("count rows: %w", err)
			}
			fmt.Printf("  Schema:    %s\n", store.CurrentSchemaVersion())
			fmt.Printf("  Documents: %d\n", counts.Documents)
			fmt.Printf("  Sections:  %d\n", counts.Sections)
			fmt.Printf("  Chunks:    %d\n", counts.Chunks)

			fmt.Println("\n=== FTS5 ===")
			if rebuild {
				if err := st.RebuildIndex(cmd.Context()); err != nil {
					return fmt.Errorf("rebuild fts: %w", err)
				}
				fmt.Println("  Rebuilt from chunks")
			}
			if err := st.CheckIndex(cmd.Context()); err != nil {
				fmt.Printf("  Status: OUT OF SYNC (%v); rerun with --rebuild-fts\n", err)
			} else {
				fmt.Println("  Status: OK (synced)")
			}

			if info, err := os.Stat(cfg.DBPath); err == nil {
				sizeMB := float64(info.Size()) / 1024 / 1024
				fmt.Printf("\n=== DB Size: %.1f MB ===\n", sizeMB)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild-fts", false, "Rebuild the full-text index before checking it")
	return cmd
}

func checkDir(name, path string) {
	if path == "" {
		fmt.Printf("  %s: (NOT SET)\n", name)
	} else if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}
