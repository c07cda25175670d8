package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of an ingest job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Job tracks one queued ingest run.
type Job struct {
	mu sync.Mutex

	ID     string    `json:"job_id"`
	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Inputs []Input `json:"inputs"`
	Fresh  bool    `json:"fresh"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	runID  string
	errors []string
}

// Progress counts files and chunks as the run advances.
type Progress struct {
	Files         int      `json:"files"`
	FilesSkipped  int      `json:"files_skipped"`
	FilesIndexed  int      `json:"files_indexed"`
	FilesFailed   int      `json:"files_failed"`
	ChunksAdded   int      `json:"chunks_added"`
	ChunksRemoved int      `json:"chunks_removed"`
	Errors        []string `json:"errors"`
}

// NewJob creates a queued job.
func NewJob(inputs []Input, fresh bool) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		Inputs:    inputs,
		Fresh:     fresh,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetPhase updates the phase of a running job.
func (j *Job) SetPhase(phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// RecordFile counts one file outcome.
func (j *Job) RecordFile(f FileReport) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Files++
	switch f.Status {
	case FileSkipped:
		j.Progress.FilesSkipped++
	case FileIndexed, FileEmpty:
		j.Progress.FilesIndexed++
	case FileFailed:
		j.Progress.FilesFailed++
		j.errors = append(j.errors, f.Name+": "+f.Error)
		j.Progress.Errors = j.errors
	}
	j.UpdatedAt = time.Now()
}

// SetChunks records the chunk totals of a finished run.
func (j *Job) SetChunks(runID string, added, removed int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runID = runID
	j.Progress.ChunksAdded = added
	j.Progress.ChunksRemoved = removed
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	RunID     string    `json:"run_id,omitempty"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Inputs    []Input   `json:"inputs"`
	Fresh     bool      `json:"fresh"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:        j.ID,
		RunID:     j.runID,
		Status:    j.Status,
		Phase:     j.Phase,
		Inputs:    append([]Input(nil), j.Inputs...),
		Fresh:     j.Fresh,
		Progress:  p,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
