package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/coursegest/internal/index"
	"github.com/dgallion1/coursegest/internal/query"
	"github.com/dgallion1/coursegest/internal/retry"
)

const maxQueryBody = 1 << 20

type askRequest struct {
	Question string `json:"question"`
}

type quizRequest struct {
	// Request is free text such as "chapters 1-3 n=5"; the n= directive
	// is honoured unless Count is set.
	Request string `json:"request"`
	Count   int    `json:"count,omitempty"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) queryOrchestrator(w http.ResponseWriter) *query.Orchestrator {
	_, q := s.library.Current()
	if q == nil {
		jsonError(w, "index not loaded; run an ingest first", http.StatusServiceUnavailable)
	}
	return q
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var body askRequest
	if !decodeBody(w, r, &body) {
		return
	}
	q := s.queryOrchestrator(w)
	if q == nil {
		return
	}
	ans, err := q.Ask(r.Context(), body.Question)
	if err != nil {
		s.queryError(w, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var body quizRequest
	if !decodeBody(w, r, &body) {
		return
	}
	q := s.queryOrchestrator(w)
	if q == nil {
		return
	}
	req := query.ParseQuiz(body.Request)
	if body.Count > 0 {
		req.Count = body.Count
	}
	res, err := q.Quiz(r.Context(), req)
	if err != nil {
		s.queryError(w, "quiz", err)
		return
	}
	if res.NoMatch {
		writeJSON(w, http.StatusNotFound, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) queryError(w http.ResponseWriter, op string, err error) {
	var re *retry.RetryableError
	switch {
	case errors.Is(err, query.ErrEmptyRequest):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, query.ErrInvalidQuiz):
		s.log.Warn("completion returned an invalid quiz", "error", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
	case errors.As(err, &re):
		s.log.Error("completion service unavailable", "op", op, "status", re.StatusCode)
		jsonError(w, "completion service unavailable", http.StatusBadGateway)
	case errors.Is(err, index.ErrDimensionMismatch):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error("query failed", "op", op, "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}
