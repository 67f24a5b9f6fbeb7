package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/raphaelgruber/designscan/internal/figma"
	"github.com/raphaelgruber/designscan/internal/models"
	"github.com/raphaelgruber/designscan/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// StartRequest is the body of POST /api/jobs.
type StartRequest struct {
	URL            string `json:"url" validate:"required,http_url"`
	Index          bool   `json:"index,omitempty"`
	IncludeRawText bool   `json:"include_raw_text,omitempty"`
	MaxConcurrency int    `json:"max_concurrency,omitempty" validate:"gte=0,lte=10"`
	ContextHint    string `json:"context_hint,omitempty" validate:"max=2000"`
}

// Options converts the request into job options.
func (r StartRequest) Options() models.StartOptions {
	return models.StartOptions{
		Index:          r.Index,
		IncludeRawText: r.IncludeRawText,
		MaxConcurrency: r.MaxConcurrency,
		ContextHint:    r.ContextHint,
	}
}

// DeleteResponse is the body returned by DELETE /api/jobs/{id}.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// SearchResponse is the body returned by GET /api/search.
type SearchResponse struct {
	Query   string                `json:"query"`
	Results []models.IndexedFrame `json:"results"`
	Count   int                   `json:"count"`
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	// Reject obvious non-Figma URLs up front instead of creating a job that fails.
	if _, err := figma.ParseSourceURL(req.URL); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	job := s.jobs.StartJob(req.URL, req.Options())
	s.jsonResponse(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	limit = min(max(limit, 1), maxListLimit)
	s.jsonResponse(w, http.StatusOK, s.jobs.ListJobs(limit))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.GetJob(r.PathValue("id"))
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "job not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if !s.jobs.DeleteJob(r.PathValue("id")) {
		s.errorResponse(w, http.StatusNotFound, "job not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, DeleteResponse{Deleted: true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, service.ErrIndexUnavailable.Error())
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		s.errorResponse(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), query, limit)
	switch {
	case errors.Is(err, service.ErrIndexUnavailable):
		s.errorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.logger.Error("search failed", "query", query, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "search failed")
		return
	}
	s.jsonResponse(w, http.StatusOK, SearchResponse{Query: query, Results: results, Count: len(results)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.metrics.Snapshot())
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
	}
	return "validation error: invalid request"
}
