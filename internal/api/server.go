package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ndelvaux/jurisnote/internal/config"
	"github.com/ndelvaux/jurisnote/internal/match"
	"github.com/ndelvaux/jurisnote/internal/pipeline"
)

// Server is the HTTP API server.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	client       *match.OllamaClient
	stats        *match.LLMStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, client *match.OllamaClient, stats *match.LLMStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		client:       client,
		stats:        stats,
		log:          log,
		cfg:          cfg,
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

	// API endpoints, behind bearer auth when a key is configured.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/process", s.handleProcess)
		r.Post("/api/process/sync", s.handleProcessSync)
		r.Get("/api/sessions/{sessionID}", s.handleSession)
		r.Get("/api/result/{sessionID}", s.handleResult)

		r.Post("/api/preview/chapters", s.handlePreviewChapters)
		r.Post("/api/preview/subjects", s.handlePreviewSubjects)
		r.Post("/api/preview/fonts", s.handlePreviewFonts)

		r.Get("/api/models", s.handleModels)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ollama := "up"
	if err := s.client.Health(ctx); err != nil {
		ollama = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"ollama": ollama,
	})
}
