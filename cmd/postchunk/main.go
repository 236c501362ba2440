// Command postchunk indexes a static site's pages into searchable sections.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/postchunk/internal/chunker"
	"github.com/dgallion1/postchunk/internal/config"
	"github.com/dgallion1/postchunk/internal/parser"
	"github.com/dgallion1/postchunk/internal/pipeline"
	"github.com/dgallion1/postchunk/internal/sectioner"
	"github.com/dgallion1/postchunk/internal/store"
)

var version = "dev"

func main() {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:          "postchunk",
		Short:        "Split rendered pages into heading sections and search them",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log per-file progress to stderr")

	newLogger := func() *slog.Logger {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelInfo
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	rootCmd.AddCommand(indexCmd(newLogger))
	rootCmd.AddCommand(sectionsCmd(newLogger))
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(mcpCmd(newLogger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newSectioner builds the sectioner the config describes.
func newSectioner(cfg config.Config) *sectioner.Sectioner {
	return sectioner.New(parser.Builder{}, chunker.New(chunker.Config{
		Budget:         cfg.ChunkWordBudget,
		KeepEmptyChunk: cfg.KeepEmptyChunk,
	}))
}

func newIndexer(cfg config.Config, st *store.Store, log *slog.Logger) *pipeline.Indexer {
	proc := pipeline.NewProcessor(st, newSectioner(cfg), log, pipeline.Options{RenderMissing: cfg.RenderMissingHTML})
	return pipeline.NewIndexer(proc, cfg.ContentDir, cfg.HTMLDir, cfg.WorkerCount, log)
}
