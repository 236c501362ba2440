package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/postchunk/internal/api"
	"github.com/dgallion1/postchunk/internal/chunker"
	"github.com/dgallion1/postchunk/internal/config"
	"github.com/dgallion1/postchunk/internal/parser"
	"github.com/dgallion1/postchunk/internal/pipeline"
	"github.com/dgallion1/postchunk/internal/sectioner"
	"github.com/dgallion1/postchunk/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateIndex(); err != nil {
		log.Warn("index jobs will fail until the content tree is configured", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	sec := sectioner.New(parser.Builder{}, chunker.New(chunker.Config{
		Budget:         cfg.ChunkWordBudget,
		KeepEmptyChunk: cfg.KeepEmptyChunk,
	}))
	proc := pipeline.NewProcessor(st, sec, log, pipeline.Options{RenderMissing: cfg.RenderMissingHTML})
	ix := pipeline.NewIndexer(proc, cfg.ContentDir, cfg.HTMLDir, cfg.WorkerCount, log)
	orch := pipeline.NewOrchestrator(cfg, ix, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, proc, st, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		st.Close()
	}()

	log.Info("starting postchunk", "port", cfg.Port, "db", cfg.DBPath, "schema", store.CurrentSchemaVersion())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
