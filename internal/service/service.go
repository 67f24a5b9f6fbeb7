// Package service runs frame analysis jobs and serves frame search.
package service

import (
	"context"
	"errors"

	"github.com/raphaelgruber/designscan/internal/figma"
	"github.com/raphaelgruber/designscan/internal/models"
)

// ErrIndexUnavailable is returned by search when no embedder or index is configured.
var ErrIndexUnavailable = errors.New("frame index not configured")

// DocumentFetcher loads the design document of a job.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, fileKey, nodeID string) (*figma.Document, error)
}

// ArtifactResolver maps frame ids to rendered image URLs.
type ArtifactResolver interface {
	Resolve(ctx context.Context, fileKey string, ids []string) (map[string]string, error)
}

// Analyzer calls the vision model for one frame.
type Analyzer interface {
	Analyze(ctx context.Context, imageURL, contextHint string) (string, error)
}

// Embedder produces vectors for searchable text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores frame specs for retrieval.
type VectorIndex interface {
	UpsertFrameSpec(ctx context.Context, id, text string, embedding []float32, metadata map[string]any) error
}

// VectorSearcher runs nearest-neighbour queries over stored frame specs.
type VectorSearcher interface {
	SearchFrameSpecs(ctx context.Context, embedding []float32, limit int) ([]models.IndexedFrame, error)
}
