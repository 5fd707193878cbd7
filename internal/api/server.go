// Package api exposes the HTTP progress and metrics interface for a crawl.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/waterbase/linkcrawler/internal/crawler"
)

// ProgressSource provides a point-in-time snapshot of the running crawl.
type ProgressSource interface {
	Stats() crawler.Stats
}

// Server wires HTTP handlers to the crawl's progress source.
type Server struct {
	router   chi.Router
	progress ProgressSource
	logger   *zap.Logger
}

// NewServer constructs a Server with routes for health, metrics and progress.
func NewServer(progress ProgressSource, logger *zap.Logger) *Server {
	s := &Server{
		progress: progress,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/progress", s.progressHandler)
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) progressHandler(w http.ResponseWriter, _ *http.Request) {
	if s.progress == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no crawl in progress"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.progress.Stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}
