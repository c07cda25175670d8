package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/coursegest/internal/llm"
	"github.com/dgallion1/coursegest/internal/pipeline"
)

// Server is the HTTP API server for coursegest.
type Server struct {
	router       chi.Router
	library      *Library
	orchestrator *pipeline.Orchestrator
	claude       *llm.Client
	log          *slog.Logger
	apiKey       string
}

// NewServer creates and configures the HTTP server. claude may be nil,
// in which case LLM stats are reported as unavailable.
func NewServer(lib *Library, orch *pipeline.Orchestrator, claude *llm.Client, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		library:      lib,
		orchestrator: orch,
		claude:       claude,
		log:          log,
		apiKey:       apiKey,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKey, s.log))

		r.Post("/api/ask", s.handleAsk)
		r.Post("/api/quiz", s.handleQuiz)

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)

		r.Get("/api/sources", s.handleSources)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, _ := s.library.Current()
	chunks := 0
	if snap != nil {
		chunks = snap.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"index_loaded": snap != nil,
		"chunks":       chunks,
	})
}
