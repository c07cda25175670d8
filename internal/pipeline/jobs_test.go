package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/coursegest/internal/corpus"
)

func TestNewJob(t *testing.T) {
	job := NewJob([]Input{{Role: corpus.DocSlides, Path: "decks"}}, true)
	if job.ID == "" {
		t.Fatal("expected job id")
	}
	if job.Status != StatusQueued || job.Phase != "queued" {
		t.Errorf("expected queued job, got %q/%q", job.Status, job.Phase)
	}
	if !job.Fresh || len(job.Inputs) != 1 {
		t.Errorf("expected inputs and fresh flag to be kept, got %+v", job.Snapshot())
	}
	if other := NewJob(nil, false); other.ID == job.ID {
		t.Error("expected distinct job ids")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusRunning, "hashing"},
		{StatusRunning, "chunking"},
		{StatusRunning, "indexing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_SetPhase(t *testing.T) {
	job := &Job{ID: "phase", Status: StatusRunning}
	job.SetPhase("chunking")
	if job.Phase != "chunking" || job.Status != StatusRunning {
		t.Errorf("expected running/chunking, got %q/%q", job.Status, job.Phase)
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("ingest: boom")
	job.AddError("reload: bang")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "ingest: boom" {
		t.Errorf("expected first error %q, got %q", "ingest: boom", snap.Progress.Errors[0])
	}
}

func TestJob_RecordFile(t *testing.T) {
	job := &Job{ID: "files"}
	job.RecordFile(FileReport{Name: "a.html", Status: FileSkipped})
	job.RecordFile(FileReport{Name: "b.html", Status: FileIndexed, Chunks: 4})
	job.RecordFile(FileReport{Name: "c.html", Status: FileEmpty})
	job.RecordFile(FileReport{Name: "d.html", Status: FileFailed, Error: "bad html"})

	p := job.Snapshot().Progress
	if p.Files != 4 || p.FilesSkipped != 1 || p.FilesIndexed != 2 || p.FilesFailed != 1 {
		t.Errorf("unexpected file counts %+v", p)
	}
	if len(p.Errors) != 1 || p.Errors[0] != "d.html: bad html" {
		t.Errorf("unexpected errors %v", p.Errors)
	}
}

func TestJob_SetChunks(t *testing.T) {
	job := &Job{ID: "chunks"}
	job.SetChunks("run-1", 12, 3)

	snap := job.Snapshot()
	if snap.RunID != "run-1" {
		t.Errorf("expected run id run-1, got %q", snap.RunID)
	}
	if snap.Progress.ChunksAdded != 12 || snap.Progress.ChunksRemoved != 3 {
		t.Errorf("unexpected chunk counts %+v", snap.Progress)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
