// Package api exposes analysis jobs over HTTP and streams their progress over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/designscan/internal/jobs"
	"github.com/raphaelgruber/designscan/internal/metrics"
	"github.com/raphaelgruber/designscan/internal/models"
)

// JobService is the job engine behind the API.
type JobService interface {
	StartJob(source string, opts models.StartOptions) models.Job
	GetJob(id string) (models.Job, bool)
	ListJobs(limit int) []models.Job
	DeleteJob(id string) bool
	Subscribe(ctx context.Context, id string) (<-chan jobs.Snapshot, error)
}

// FrameSearcher answers semantic frame queries.
type FrameSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.IndexedFrame, error)
}

// Server routes API requests to the job engine.
type Server struct {
	jobs      JobService
	search    FrameSearcher
	metrics   *metrics.Collector
	validator *validator.Validate
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// New creates the API server. search may be nil when no index is configured.
func New(jobService JobService, search FrameSearcher, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		jobs:      jobService,
		search:    search,
		metrics:   collector,
		validator: validator.New(),
		upgrader: websocket.Upgrader{
			// Local tool; the CLI and browser dev servers connect cross-origin
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/jobs", s.handleStartJob)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("GET /api/jobs/{id}/events", s.handleJobEvents)

	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return LoggingMiddleware(s.logger)(mux)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encode response failed", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
