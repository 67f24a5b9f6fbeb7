package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/designscan/internal/models"
)

// frameRecord is the stored shape of a frame_spec row.
type frameRecord struct {
	ID        surrealmodels.RecordID `json:"id"`
	Content   string                 `json:"content"`
	FrameID   string                 `json:"frame_id"`
	FrameName string                 `json:"frame_name"`
	JobID     string                 `json:"job_id"`
	FileKey   string                 `json:"file_key"`
	Metadata  map[string]any         `json:"metadata"`
	IndexedAt time.Time              `json:"indexed_at"`
	Score     float64                `json:"score,omitempty"`
}

func (r frameRecord) toIndexed() models.IndexedFrame {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		id = fmt.Sprint(r.ID.ID)
	}
	return models.IndexedFrame{
		ID:        id,
		JobID:     r.JobID,
		FrameID:   r.FrameID,
		FrameName: r.FrameName,
		Content:   r.Content,
		Metadata:  r.Metadata,
		Score:     r.Score,
		IndexedAt: r.IndexedAt,
	}
}

// UpsertFrameSpec stores one frame's searchable text and vector under id.
// Re-indexing the same id overwrites the previous record.
func (c *Client) UpsertFrameSpec(ctx context.Context, id, text string, embedding []float32, metadata map[string]any) error {
	if id == "" {
		return fmt.Errorf("upsert frame spec: empty id")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("frame_spec", $id) SET
			content = $content,
			embedding = $embedding,
			frame_id = $frame_id,
			frame_name = $frame_name,
			job_id = $job_id,
			file_key = $file_key,
			metadata = $metadata,
			indexed_at = time::now()
		RETURN NONE
	`, map[string]any{
		"id":         id,
		"content":    text,
		"embedding":  embedding,
		"frame_id":   metaString(metadata, "frame_id"),
		"frame_name": metaString(metadata, "frame_name"),
		"job_id":     metaString(metadata, "job_id"),
		"file_key":   metaString(metadata, "file_key"),
		"metadata":   metadata,
	})
	if err != nil {
		return fmt.Errorf("upsert frame spec: %w", wrapQueryError(err))
	}
	return nil
}

// SearchFrameSpecs returns the limit nearest frames to embedding by cosine similarity.
func (c *Client) SearchFrameSpecs(ctx context.Context, embedding []float32, limit int) ([]models.IndexedFrame, error) {
	if limit <= 0 {
		limit = 10
	}

	// HNSW candidate list of 40 for recall
	sql := fmt.Sprintf(`
		SELECT id, content, frame_id, frame_name, job_id, file_key, metadata, indexed_at,
			vector::similarity::cosine(embedding, $emb) AS score
		FROM frame_spec
		WHERE embedding <|%d,40|> $emb
		ORDER BY score DESC
	`, limit)

	results, err := surrealdb.Query[[]frameRecord](ctx, c.db, sql, map[string]any{"emb": embedding})
	if err != nil {
		return nil, fmt.Errorf("search frame specs: %w", wrapQueryError(err))
	}
	return toIndexedFrames(results), nil
}

// GetFrameSpec returns one stored frame or ErrNotFound.
func (c *Client) GetFrameSpec(ctx context.Context, id string) (*models.IndexedFrame, error) {
	results, err := surrealdb.Query[[]frameRecord](ctx, c.db, `
		SELECT id, content, frame_id, frame_name, job_id, file_key, metadata, indexed_at
		FROM type::record("frame_spec", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get frame spec: %w", wrapQueryError(err))
	}

	frames := toIndexedFrames(results)
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &frames[0], nil
}

// DeleteFileFrames removes every indexed frame of a Figma file and returns the count.
func (c *Client) DeleteFileFrames(ctx context.Context, fileKey string) (int, error) {
	results, err := surrealdb.Query[[]frameRecord](ctx, c.db, `
		DELETE frame_spec WHERE file_key = $file_key RETURN BEFORE
	`, map[string]any{"file_key": fileKey})
	if err != nil {
		return 0, fmt.Errorf("delete file frames: %w", wrapQueryError(err))
	}
	return len(toIndexedFrames(results)), nil
}

func toIndexedFrames(results *[]surrealdb.QueryResult[[]frameRecord]) []models.IndexedFrame {
	if results == nil || len(*results) == 0 {
		return []models.IndexedFrame{}
	}
	rows := (*results)[0].Result
	out := make([]models.IndexedFrame, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toIndexed())
	}
	return out
}

func metaString(meta map[string]any, key string) string {
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}
