package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/designscan/internal/metrics"
	"github.com/raphaelgruber/designscan/internal/models"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// SearchService answers semantic queries over indexed frames.
type SearchService struct {
	embedder Embedder
	searcher VectorSearcher
	metrics  *metrics.Collector
}

// NewSearchService creates a search service.
func NewSearchService(embedder Embedder, searcher VectorSearcher, collector *metrics.Collector) *SearchService {
	return &SearchService{embedder: embedder, searcher: searcher, metrics: collector}
}

// Search embeds query and returns the nearest indexed frames with their scores.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]models.IndexedFrame, error) {
	if s == nil || s.embedder == nil || s.searcher == nil {
		return nil, ErrIndexUnavailable
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	start := time.Now()
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.metrics.RecordError(metrics.OpSearch, time.Since(start))
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.searcher.SearchFrameSpecs(ctx, vec, limit)
	if err != nil {
		s.metrics.RecordError(metrics.OpSearch, time.Since(start))
		return nil, fmt.Errorf("search frames: %w", err)
	}
	s.metrics.RecordTiming(metrics.OpSearch, time.Since(start))
	return results, nil
}
