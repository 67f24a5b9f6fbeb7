package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/designscan/internal/models"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

type upsert struct {
	id   string
	text string
	meta map[string]any
}

type fakeIndex struct {
	mu      sync.Mutex
	failIDs map[string]bool
	upserts []upsert
	results []models.IndexedFrame
	limit   int
}

func (ix *fakeIndex) UpsertFrameSpec(_ context.Context, id, text string, _ []float32, meta map[string]any) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.failIDs[id] {
		return errors.New("connection reset")
	}
	ix.upserts = append(ix.upserts, upsert{id: id, text: text, meta: meta})
	return nil
}

func (ix *fakeIndex) SearchFrameSpecs(_ context.Context, _ []float32, limit int) ([]models.IndexedFrame, error) {
	ix.limit = limit
	return ix.results, nil
}

func richFrame(id string) models.FrameSpec {
	return models.FrameSpec{
		FrameID:       id,
		FrameName:     "Checkout " + id,
		Description:   "Order summary with payment form",
		Components:    []models.Component{{Name: "Pay", Type: "button", Description: "submits the order"}},
		BusinessRules: []string{"Pay is disabled until the form is valid"},
		States:        []models.UIState{{Name: "loading"}},
	}
}

func TestIndexerSkipsEmptyAndShortFrames(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := &fakeIndex{}
	ix := NewIndexer(emb, idx, 0, nil, nil)

	result := models.AggregatedResult{
		FileKey: "FILE1",
		Frames: []models.FrameSpec{
			richFrame("1:1"),
			{FrameID: "1:2", FrameName: "Blank"},
			{FrameID: "1:3", FrameName: "Tiny", BusinessRules: []string{"ok"}},
		},
	}

	n := ix.Index(context.Background(), "job-1", result)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, emb.calls)
	require.Len(t, idx.upserts, 1)

	got := idx.upserts[0]
	assert.Equal(t, "FILE1/1:1", got.id)
	assert.True(t, strings.HasPrefix(got.text, "Frame: Checkout 1:1"))
	assert.Equal(t, "1:1", got.meta["frame_id"])
	assert.Equal(t, "job-1", got.meta["job_id"])
	assert.Equal(t, "FILE1", got.meta["file_key"])
	assert.Equal(t, 1, got.meta["component_count"])
	assert.Equal(t, 1, got.meta["rule_count"])
	assert.Equal(t, 1, got.meta["state_count"])
}

func TestIndexerToleratesFailures(t *testing.T) {
	t.Run("upsert failure", func(t *testing.T) {
		idx := &fakeIndex{failIDs: map[string]bool{"F/1:1": true}}
		ix := NewIndexer(&fakeEmbedder{}, idx, 10, nil, nil)
		n := ix.Index(context.Background(), "j", models.AggregatedResult{
			FileKey: "F",
			Frames:  []models.FrameSpec{richFrame("1:1"), richFrame("1:2")},
		})
		assert.Equal(t, 1, n)
		require.Len(t, idx.upserts, 1)
		assert.Equal(t, "F/1:2", idx.upserts[0].id)
	})

	t.Run("embedding failure", func(t *testing.T) {
		idx := &fakeIndex{}
		ix := NewIndexer(&fakeEmbedder{err: errors.New("model not loaded")}, idx, 10, nil, nil)
		n := ix.Index(context.Background(), "j", models.AggregatedResult{Frames: []models.FrameSpec{richFrame("1:1")}})
		assert.Zero(t, n)
		assert.Empty(t, idx.upserts)
	})
}

func TestIndexingDuringJob(t *testing.T) {
	idx := &fakeIndex{}
	svc := newTestService(t, Deps{
		Fetcher:  stubFetcher{doc: docWithFrames(3)},
		Analyzer: &countingAnalyzer{},
		Indexer:  NewIndexer(&fakeEmbedder{}, idx, 10, nil, nil),
	})

	t.Run("index requested", func(t *testing.T) {
		final := finalJob(t, watch(t, svc, svc.StartJob(testURL, models.StartOptions{Index: true}).ID))
		require.NotNil(t, final.Result)
		assert.Equal(t, 3, final.Result.IndexedFrames)
		assert.Len(t, idx.upserts, 3)
	})

	t.Run("index not requested", func(t *testing.T) {
		final := finalJob(t, watch(t, svc, svc.StartJob(testURL, models.StartOptions{}).ID))
		require.NotNil(t, final.Result)
		assert.Zero(t, final.Result.IndexedFrames)
		assert.Len(t, idx.upserts, 3)
	})
}

func TestFrameRecordID(t *testing.T) {
	assert.Equal(t, "abc/1:2", frameRecordID("abc", "1:2"))
	assert.Equal(t, "1:2", frameRecordID("", "1:2"))
}

func TestSearchService(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		var nilSvc *SearchService
		_, err := nilSvc.Search(context.Background(), "checkout", 5)
		assert.ErrorIs(t, err, ErrIndexUnavailable)

		_, err = NewSearchService(nil, nil, nil).Search(context.Background(), "checkout", 5)
		assert.ErrorIs(t, err, ErrIndexUnavailable)
	})

	t.Run("empty query", func(t *testing.T) {
		svc := NewSearchService(&fakeEmbedder{}, &fakeIndex{}, nil)
		_, err := svc.Search(context.Background(), "   ", 5)
		assert.Error(t, err)
	})

	t.Run("limits", func(t *testing.T) {
		idx := &fakeIndex{results: []models.IndexedFrame{{FrameID: "1:1", Score: 0.92}}}
		svc := NewSearchService(&fakeEmbedder{}, idx, nil)

		res, err := svc.Search(context.Background(), "payment form", 0)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.InDelta(t, 0.92, res[0].Score, 1e-9)
		assert.Equal(t, defaultSearchLimit, idx.limit)

		_, err = svc.Search(context.Background(), "payment form", 500)
		require.NoError(t, err)
		assert.Equal(t, maxSearchLimit, idx.limit)
	})

	t.Run("embedding error", func(t *testing.T) {
		svc := NewSearchService(&fakeEmbedder{err: errors.New("boom")}, &fakeIndex{}, nil)
		_, err := svc.Search(context.Background(), "payment", 3)
		assert.ErrorContains(t, err, "embed query")
	})
}

func TestAggregateSummary(t *testing.T) {
	started := time.Now().Add(-2 * time.Second)
	frames := []models.FrameSpec{
		{FrameID: "1", Components: []models.Component{{Type: "Button"}, {Type: "input"}, {Type: ""}}, BusinessRules: []string{"a", "b"}},
		{FrameID: "2", Components: []models.Component{{Type: "button"}}, States: []models.UIState{{Name: "empty"}}, Interactions: []models.Interaction{{Trigger: "click"}}},
	}

	res := Aggregate(ResultMeta{FileKey: "K", FileName: "Shop", RootNodeID: "0:1", StartedAt: started}, frames, 4, []string{"3", "4"})

	assert.Equal(t, "K", res.FileKey)
	assert.Equal(t, "Shop", res.FileName)
	assert.Equal(t, "0:1", res.RootNodeID)
	assert.Equal(t, 4, res.TotalFrames)
	assert.Equal(t, 2, res.AnalyzedFrames)
	assert.Equal(t, 2, res.SkippedFrames)
	assert.Equal(t, []string{"3", "4"}, res.SkippedFrameIDs)
	assert.Equal(t, 4, res.Summary.TotalComponents)
	assert.Equal(t, 2, res.Summary.TotalRules)
	assert.Equal(t, 1, res.Summary.TotalStates)
	assert.Equal(t, 1, res.Summary.TotalInteractions)
	assert.Equal(t, map[string]int{"button": 2, "input": 1, "unknown": 1}, res.Summary.ComponentTypes)
	assert.GreaterOrEqual(t, res.DurationMs, int64(2000))
	assert.False(t, res.AnalyzedAt.IsZero())

	frames[0].FrameID = "mutated"
	assert.Equal(t, "1", res.Frames[0].FrameID)
}
