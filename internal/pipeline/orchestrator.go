package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/postchunk/internal/config"
)

// ErrIndexRunning is returned by Submit while another index job is pending.
var ErrIndexRunning = errors.New("an index job is already queued or running")

// Orchestrator runs index jobs in the background for the HTTP API. Jobs run
// one at a time; each job fans out over the indexer's worker pool.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	indexer *Indexer
	log     *slog.Logger
	cfg     config.Config

	submitMu sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewOrchestrator(cfg config.Config, ix *Indexer, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		indexer: ix,
		log:     log,
		cfg:     cfg,
	}
}

// Start launches the job runner and the job store cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case job, ok := <-o.queue:
				if !ok {
					return
				}
				o.run(runCtx, job)
			}
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels running work and waits for the goroutines to exit.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues job unless another job is still pending.
func (o *Orchestrator) Submit(job *Job) error {
	o.submitMu.Lock()
	defer o.submitMu.Unlock()

	if active := o.jobs.Active(); active != nil {
		return fmt.Errorf("%w: %s", ErrIndexRunning, active.ID)
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Latency exposes the processor's latency stats.
func (o *Orchestrator) Latency() *LatencyStats {
	return o.indexer.proc.Latency()
}

func (o *Orchestrator) run(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID, "force", job.Force)

	job.SetStatus(StatusScanning, "scanning")
	files, err := o.indexer.Scan()
	if err != nil {
		log.Error("scan failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "scanning")
		return
	}
	job.SetTotalDocuments(len(files))

	job.SetStatus(StatusIndexing, "indexing")
	stats, err := o.indexer.IndexFiles(ctx, files, job.Force, job.RecordResult)
	if err != nil {
		log.Error("index run aborted", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "indexing")
		return
	}
	if stats.Failed > 0 {
		job.SetStatus(StatusPartial, "done")
		return
	}
	job.SetStatus(StatusCompleted, "done")
}
