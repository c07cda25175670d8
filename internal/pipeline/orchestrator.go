package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Submit once the orchestrator is shutting down.
var ErrStopped = errors.New("ingest pipeline is stopped")

// Orchestrator queues ingest jobs and runs them one at a time, which keeps
// a single writer on the index location.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	worker   *Worker
	log      *slog.Logger
	maxQueue int
	onChange func(ctx context.Context) error

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewOrchestrator creates the pipeline. onChange, if set, runs after every
// job that modified the index.
func NewOrchestrator(worker *Worker, maxQueue int, ttl time.Duration, onChange func(ctx context.Context) error, log *slog.Logger) *Orchestrator {
	if maxQueue <= 0 {
		maxQueue = 16
	}
	return &Orchestrator{
		jobs:     NewJobStore(ttl),
		queue:    make(chan *Job, maxQueue),
		worker:   worker,
		log:      log,
		maxQueue: maxQueue,
		onChange: onChange,
	}
}

// Start launches the worker goroutine.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case job, ok := <-o.queue:
				if !ok {
					return
				}
				o.run(workerCtx, job)
			}
		}
	}()

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

func (o *Orchestrator) run(ctx context.Context, job *Job) {
	if !o.worker.Process(ctx, job) || o.onChange == nil {
		return
	}
	if err := o.onChange(ctx); err != nil {
		o.log.Error("reload after ingest failed", "job_id", job.ID, "error", err)
		job.AddError(fmt.Sprintf("reload: %s", err))
	}
}

// Stop gracefully shuts down the pipeline. Later calls are no-ops.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.mu.Unlock()

	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.maxQueue)
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
