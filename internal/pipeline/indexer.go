package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/postchunk/internal/scan"
	"golang.org/x/sync/errgroup"
)

// Stats summarizes one indexing run.
type Stats struct {
	Scanned  int           `json:"scanned"`
	Indexed  int           `json:"indexed"`
	UpToDate int           `json:"up_to_date"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Sections int           `json:"sections"`
	Chunks   int           `json:"chunks"`
	Pruned   int           `json:"pruned"`
	Errors   []string      `json:"errors"`
	Duration time.Duration `json:"duration_ns"`
}

func (s *Stats) add(r Result) {
	switch r.Outcome {
	case OutcomeIndexed:
		s.Indexed++
	case OutcomeUpToDate:
		s.UpToDate++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
		s.Errors = append(s.Errors, fmt.Sprintf("%s: %s", r.RelPath, r.Reason))
	}
	s.Sections += r.Sections
	s.Chunks += r.Chunks
	s.Pruned += r.Pruned
}

// Indexer runs the processor over a whole content tree.
type Indexer struct {
	proc       *Processor
	contentDir string
	htmlDir    string
	workers    int
	log        *slog.Logger
}

func NewIndexer(proc *Processor, contentDir, htmlDir string, workers int, log *slog.Logger) *Indexer {
	if workers <= 0 {
		workers = 1
	}
	return &Indexer{
		proc:       proc,
		contentDir: contentDir,
		htmlDir:    htmlDir,
		workers:    workers,
		log:        log,
	}
}

// Scan lists the files IndexAll would process.
func (ix *Indexer) Scan() ([]scan.File, error) {
	return scan.Scan(ix.contentDir, ix.htmlDir)
}

// IndexAll processes every file in the content tree. Failures of single
// documents are counted and logged; only scan errors and cancellation abort
// the run. onResult, if set, is called once per file from worker goroutines.
func (ix *Indexer) IndexAll(ctx context.Context, force bool, onResult func(Result)) (Stats, error) {
	files, err := ix.Scan()
	if err != nil {
		return Stats{}, err
	}
	return ix.IndexFiles(ctx, files, force, onResult)
}

// IndexFiles processes an already scanned file list.
func (ix *Indexer) IndexFiles(ctx context.Context, files []scan.File, force bool, onResult func(Result)) (Stats, error) {
	start := time.Now()
	stats := Stats{Scanned: len(files), Errors: []string{}}
	ix.log.Info("index run started", "files", len(files), "workers", ix.workers, "force", force)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for _, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, _ := ix.proc.ProcessFile(gctx, f, force)
			mu.Lock()
			stats.add(res)
			mu.Unlock()
			if onResult != nil {
				onResult(res)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	stats.Duration = time.Since(start)
	if err != nil {
		return stats, fmt.Errorf("index run: %w", err)
	}

	ix.log.Info("index run finished",
		"indexed", stats.Indexed, "up_to_date", stats.UpToDate,
		"skipped", stats.Skipped, "failed", stats.Failed,
		"sections", stats.Sections, "chunks", stats.Chunks,
		"duration_ms", stats.Duration.Milliseconds())
	return stats, nil
}
