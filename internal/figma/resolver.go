package figma

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBatchSize is the number of ids per render request.
	DefaultBatchSize = 10
	// DefaultBatchDelay is the pause between render requests.
	DefaultBatchDelay = 500 * time.Millisecond
)

// ImageRenderer renders nodes to fetchable image URLs.
type ImageRenderer interface {
	RenderImages(ctx context.Context, fileKey string, ids []string) (map[string]string, error)
}

// Resolver maps node ids to image URLs in rate-limited batches.
type Resolver struct {
	renderer  ImageRenderer
	batchSize int
	delay     time.Duration
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithBatchSize sets the number of ids per request.
func WithBatchSize(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithBatchDelay sets the minimum pause between requests.
func WithBatchDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d >= 0 {
			r.delay = d
		}
	}
}

// WithLogger sets the logger used for skipped batches.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver over renderer.
func NewResolver(renderer ImageRenderer, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		renderer:  renderer,
		batchSize: DefaultBatchSize,
		delay:     DefaultBatchDelay,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns id -> image URL for every id that could be rendered.
// A failing batch is logged and skipped. Only an empty file key is an error.
func (r *Resolver) Resolve(ctx context.Context, fileKey string, ids []string) (map[string]string, error) {
	if fileKey == "" {
		return nil, fmt.Errorf("resolve artifacts: %w: empty file key", ErrInvalidSourceURL)
	}

	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	limit := rate.Inf
	if r.delay > 0 {
		limit = rate.Every(r.delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	for start := 0; start < len(ids); start += r.batchSize {
		end := min(start+r.batchSize, len(ids))
		batch := ids[start:end]

		if err := limiter.Wait(ctx); err != nil {
			r.logger.Warn("artifact resolution interrupted", "error", err, "remaining", len(ids)-start)
			break
		}

		urls, err := r.renderer.RenderImages(ctx, fileKey, batch)
		if err != nil {
			r.logger.Warn("artifact batch failed", "error", err, "batch_start", start, "batch_size", len(batch))
			continue
		}
		for _, id := range batch {
			if u := strings.TrimSpace(urls[id]); u != "" {
				out[id] = u
			}
		}
	}

	r.logger.Debug("artifacts resolved", "file_key", fileKey, "requested", len(ids), "resolved", len(out))
	return out, nil
}
