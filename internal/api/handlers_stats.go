package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.client.ListModels(r.Context())
	if err != nil {
		jsonError(w, "ollama unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if models == nil {
		models = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"models":  models,
		"default": s.cfg.OllamaModel,
	})
}

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"model": s.cfg.OllamaModel,
		"stats": s.stats.Snapshot(),
	})
}
