package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/pipeline"
)

type ingestRequest struct {
	Inputs []pipeline.Input `json:"inputs"`
	Fresh  bool             `json:"fresh"`
}

// handleIngest queues an ingest of HTML paths already on the server's
// filesystem. Jobs run one at a time.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var body ingestRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.Inputs) == 0 {
		jsonError(w, "at least one input is required", http.StatusBadRequest)
		return
	}
	for i, in := range body.Inputs {
		if in.Path == "" {
			jsonError(w, fmt.Sprintf("inputs[%d]: path is required", i), http.StatusBadRequest)
			return
		}
		if in.Role != "" && !in.Role.Valid() {
			jsonError(w, fmt.Sprintf("inputs[%d]: unknown role %q", i, in.Role), http.StatusBadRequest)
			return
		}
		if _, err := os.Stat(in.Path); err != nil {
			jsonError(w, fmt.Sprintf("inputs[%d]: %s not readable", i, in.Path), http.StatusBadRequest)
			return
		}
		if in.Role == "" {
			body.Inputs[i].Role = corpus.DocHTML
		}
	}

	job := pipeline.NewJob(body.Inputs, body.Fresh)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/ingest/%s/status", job.ID),
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
