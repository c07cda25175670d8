package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// Worker runs ingest jobs against one index location.
type Worker struct {
	ingester *Ingester
	log      *slog.Logger
	base     IngestOptions
}

// NewWorker binds an ingester to the run settings shared by every job:
// index location, course id, version and batch size.
func NewWorker(ingester *Ingester, base IngestOptions, log *slog.Logger) *Worker {
	return &Worker{ingester: ingester, base: base, log: log}
}

// Process runs the ingest for a job and records the outcome on it. It
// reports whether the index changed.
func (w *Worker) Process(ctx context.Context, job *Job) bool {
	log := w.log.With("job_id", job.ID)
	job.SetStatus(StatusRunning, "starting")

	opts := w.base
	opts.Inputs = job.Inputs
	opts.Fresh = job.Fresh
	opts.OnPhase = job.SetPhase
	opts.OnFile = job.RecordFile

	report, err := w.ingester.Run(ctx, opts)
	if report != nil {
		job.SetChunks(report.RunID, report.Added, report.Removed)
	}
	if err != nil {
		log.Error("ingest failed", "error", err)
		job.AddError(fmt.Sprintf("ingest: %s", err))
		job.SetStatus(StatusFailed, "done")
		return report != nil && report.Added > 0
	}

	failed := report.Count(FileFailed)
	switch {
	case failed > 0 && failed == len(report.Files):
		job.SetStatus(StatusFailed, "done")
	case failed > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("ingest job finished", "added", report.Added, "removed", report.Removed, "failed_files", failed)
	return report.Added > 0 || report.Removed > 0
}
