package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/raphaelgruber/designscan/internal/metrics"
	"github.com/raphaelgruber/designscan/internal/models"
)

// DefaultMinContentLength is the shortest searchable text worth indexing.
const DefaultMinContentLength = 50

// Indexer pushes analyzed frames into the vector index.
type Indexer struct {
	embedder         Embedder
	index            VectorIndex
	minContentLength int
	metrics          *metrics.Collector
	logger           *slog.Logger
}

// NewIndexer creates an indexer. minContentLength <= 0 uses DefaultMinContentLength.
func NewIndexer(embedder Embedder, index VectorIndex, minContentLength int, collector *metrics.Collector, logger *slog.Logger) *Indexer {
	if minContentLength <= 0 {
		minContentLength = DefaultMinContentLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder:         embedder,
		index:            index,
		minContentLength: minContentLength,
		metrics:          collector,
		logger:           logger,
	}
}

// Index embeds and stores every qualifying frame of result and returns how many were stored.
// Empty or near-empty frames are skipped. Per-frame failures are logged and skipped.
func (ix *Indexer) Index(ctx context.Context, jobID string, result models.AggregatedResult) int {
	indexed := 0
	for _, frame := range result.Frames {
		if ix.indexFrame(ctx, jobID, result.FileKey, frame) {
			indexed++
		}
	}
	ix.metrics.Add(metrics.CounterFramesIndexed, int64(indexed))
	ix.logger.Info("frames indexed", "job_id", jobID, "indexed", indexed, "frames", len(result.Frames))
	return indexed
}

func (ix *Indexer) indexFrame(ctx context.Context, jobID, fileKey string, frame models.FrameSpec) bool {
	logger := ix.logger.With("job_id", jobID, "frame_id", frame.FrameID)

	if frame.IsEmpty() {
		logger.Debug("index skipped: empty frame")
		return false
	}
	text := frame.SearchableText()
	if len(text) < ix.minContentLength {
		logger.Debug("index skipped: content too short", "text_len", len(text), "min", ix.minContentLength)
		return false
	}

	start := time.Now()
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		ix.metrics.RecordError(metrics.OpEmbedding, time.Since(start))
		logger.Warn("index skipped: embedding failed", "error", err)
		return false
	}
	ix.metrics.RecordTiming(metrics.OpEmbedding, time.Since(start))

	meta := map[string]any{
		"frame_id":        frame.FrameID,
		"frame_name":      frame.FrameName,
		"job_id":          jobID,
		"file_key":        fileKey,
		"component_count": len(frame.Components),
		"rule_count":      len(frame.BusinessRules),
		"state_count":     len(frame.States),
	}

	start = time.Now()
	if err := ix.index.UpsertFrameSpec(ctx, frameRecordID(fileKey, frame.FrameID), text, vec, meta); err != nil {
		ix.metrics.RecordError(metrics.OpIndex, time.Since(start))
		logger.Warn("index skipped: upsert failed", "error", err)
		return false
	}
	ix.metrics.RecordTiming(metrics.OpIndex, time.Since(start))
	return true
}

// frameRecordID keys index records by file and frame so re-analysis overwrites.
func frameRecordID(fileKey, frameID string) string {
	if fileKey == "" {
		return frameID
	}
	return fileKey + "/" + frameID
}
