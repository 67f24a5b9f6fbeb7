package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/designscan/internal/figma"
	"github.com/raphaelgruber/designscan/internal/jobs"
	"github.com/raphaelgruber/designscan/internal/models"
	"github.com/raphaelgruber/designscan/internal/service"
	"github.com/raphaelgruber/designscan/internal/tools"
)

const figmaURL = "https://www.figma.com/design/KEY9/Checkout?node-id=1-2"

type storeJobs struct{ store *jobs.Store }

func (s storeJobs) StartJob(source string, opts models.StartOptions) models.Job {
	ref, _ := figma.ParseSourceURL(source)
	return s.store.Create(ref, opts)
}
func (s storeJobs) GetJob(id string) (models.Job, bool) { return s.store.Get(id) }
func (s storeJobs) ListJobs(limit int) []models.Job     { return s.store.List(limit) }
func (s storeJobs) DeleteJob(id string) bool            { return s.store.Delete(id) }
func (s storeJobs) Subscribe(ctx context.Context, id string) (<-chan jobs.Snapshot, error) {
	return s.store.Subscribe(ctx, id)
}

type fakeSearcher struct {
	results []models.IndexedFrame
	err     error
	limit   int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, limit int) ([]models.IndexedFrame, error) {
	f.limit = limit
	return f.results, f.err
}

func setup(t *testing.T, search tools.FrameSearcher) (context.Context, *mcp.ClientSession, *jobs.Store) {
	t.Helper()
	store := jobs.NewStore()
	deps := &tools.Dependencies{Jobs: storeJobs{store}, Search: search, Logger: slog.New(slog.DiscardHandler)}

	server := mcp.NewServer(&mcp.Implementation{Name: "test-designscan", Version: "0.0.1-test"}, nil)
	tools.RegisterAll(server, deps)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return ctx, session, store
}

func call(t *testing.T, ctx context.Context, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content should be TextContent")
	return text.Text, result.IsError
}

func decodeJob(t *testing.T, text string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out), text)
	return out
}

func completeJob(t *testing.T, store *jobs.Store, id string) {
	t.Helper()
	require.NoError(t, finish(store, id))
}

func finish(store *jobs.Store, id string) error {
	_, err := store.Update(id, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
		j.Progress = models.Progress{TotalItems: 1, AnalyzedItems: 1}
		j.Result = &models.AggregatedResult{
			FileKey:        "KEY9",
			Frames:         []models.FrameSpec{{FrameID: "1:2", FrameName: "Cart"}},
			TotalFrames:    1,
			AnalyzedFrames: 1,
		}
	})
	return err
}

func TestPingTool(t *testing.T) {
	ctx, session, _ := setup(t, nil)

	text, isErr := call(t, ctx, session, "ping", map[string]any{})
	assert.False(t, isErr)
	assert.Equal(t, "pong", text)

	text, _ = call(t, ctx, session, "ping", map[string]any{"echo": "hello world"})
	assert.Equal(t, "hello world", text)
}

func TestStartAnalysis(t *testing.T) {
	ctx, session, store := setup(t, nil)

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{
		{"empty url", map[string]any{"url": "  "}, "URL cannot be empty"},
		{"not figma", map[string]any{"url": "https://example.com/design/x"}, "Invalid Figma URL"},
		{"concurrency too high", map[string]any{"url": figmaURL, "max_concurrency": 11}, "max_concurrency must be 1-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, ctx, session, "start_analysis", tt.args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.wantErr)
		})
	}
	assert.Equal(t, 0, store.Len())

	t.Run("valid", func(t *testing.T) {
		text, isErr := call(t, ctx, session, "start_analysis", map[string]any{
			"url": figmaURL, "index": true, "max_concurrency": 4, "context_hint": "checkout flow",
		})
		require.False(t, isErr, text)
		out := decodeJob(t, text)
		id, _ := out["id"].(string)
		require.NotEmpty(t, id)

		job, ok := store.Get(id)
		require.True(t, ok)
		assert.Equal(t, "KEY9", job.Source.FileKey)
		assert.Equal(t, "1:2", job.Source.NodeID)
		assert.True(t, job.Options.Index)
		assert.Equal(t, 4, job.Options.MaxConcurrency)
		assert.Equal(t, "checkout flow", job.Options.ContextHint)
	})
}

func TestGetAnalysis(t *testing.T) {
	ctx, session, store := setup(t, nil)
	job := store.Create(models.SourceRef{URL: figmaURL, FileKey: "KEY9"}, models.StartOptions{})
	completeJob(t, store, job.ID)

	t.Run("unknown", func(t *testing.T) {
		text, isErr := call(t, ctx, session, "get_analysis", map[string]any{"job_id": "missing"})
		assert.True(t, isErr)
		assert.Contains(t, text, "Job not found")
	})

	t.Run("summary only", func(t *testing.T) {
		text, isErr := call(t, ctx, session, "get_analysis", map[string]any{"job_id": job.ID})
		require.False(t, isErr)
		out := decodeJob(t, text)
		result := out["result"].(map[string]any)
		assert.Nil(t, result["frames"])
		assert.EqualValues(t, 1, result["analyzed_frames"])
	})

	t.Run("with frames", func(t *testing.T) {
		text, _ := call(t, ctx, session, "get_analysis", map[string]any{"job_id": job.ID, "include_frames": true})
		out := decodeJob(t, text)
		result := out["result"].(map[string]any)
		assert.Len(t, result["frames"], 1)
	})

	stored, _ := store.Get(job.ID)
	assert.Len(t, stored.Result.Frames, 1, "stripping frames must not mutate the store")
}

func TestListAndDeleteAnalyses(t *testing.T) {
	ctx, session, store := setup(t, nil)
	a := store.Create(models.SourceRef{URL: figmaURL}, models.StartOptions{})
	store.Create(models.SourceRef{URL: figmaURL}, models.StartOptions{})

	text, isErr := call(t, ctx, session, "list_analyses", map[string]any{})
	require.False(t, isErr)
	out := decodeJob(t, text)
	assert.EqualValues(t, 2, out["count"])

	text, isErr = call(t, ctx, session, "list_analyses", map[string]any{"limit": 500})
	assert.True(t, isErr)
	assert.Contains(t, text, "Limit must be 1-100")

	text, isErr = call(t, ctx, session, "delete_analysis", map[string]any{"job_id": a.ID})
	require.False(t, isErr)
	assert.Contains(t, text, a.ID)
	assert.Equal(t, 1, store.Len())

	_, isErr = call(t, ctx, session, "delete_analysis", map[string]any{"job_id": a.ID})
	assert.True(t, isErr)
}

func TestWaitAnalysis(t *testing.T) {
	t.Run("returns when job finishes", func(t *testing.T) {
		ctx, session, store := setup(t, nil)
		job := store.Create(models.SourceRef{URL: figmaURL}, models.StartOptions{})
		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = finish(store, job.ID)
		}()

		text, isErr := call(t, ctx, session, "wait_analysis", map[string]any{"job_id": job.ID, "timeout_seconds": 5})
		require.False(t, isErr, text)
		out := decodeJob(t, text)
		assert.Equal(t, "completed", out["status"])
		assert.Nil(t, out["timed_out"])
	})

	t.Run("times out", func(t *testing.T) {
		ctx, session, store := setup(t, nil)
		job := store.Create(models.SourceRef{URL: figmaURL}, models.StartOptions{})

		text, isErr := call(t, ctx, session, "wait_analysis", map[string]any{"job_id": job.ID, "timeout_seconds": 1})
		require.False(t, isErr, text)
		out := decodeJob(t, text)
		assert.Equal(t, "pending", out["status"])
		assert.Equal(t, true, out["timed_out"])
	})

	t.Run("unknown job", func(t *testing.T) {
		ctx, session, _ := setup(t, nil)
		text, isErr := call(t, ctx, session, "wait_analysis", map[string]any{"job_id": "missing"})
		assert.True(t, isErr)
		assert.Contains(t, text, "Job not found")
	})
}

func TestSearchFrames(t *testing.T) {
	t.Run("index not configured", func(t *testing.T) {
		ctx, session, _ := setup(t, nil)
		text, isErr := call(t, ctx, session, "search_frames", map[string]any{"query": "cart"})
		assert.True(t, isErr)
		assert.Contains(t, text, "EMBED_PROVIDER")
	})

	t.Run("unavailable from service", func(t *testing.T) {
		ctx, session, _ := setup(t, &fakeSearcher{err: service.ErrIndexUnavailable})
		text, isErr := call(t, ctx, session, "search_frames", map[string]any{"query": "cart"})
		assert.True(t, isErr)
		assert.Contains(t, text, "SURREALDB_URL")
	})

	t.Run("backend failure", func(t *testing.T) {
		ctx, session, _ := setup(t, &fakeSearcher{err: errors.New("boom")})
		text, isErr := call(t, ctx, session, "search_frames", map[string]any{"query": "cart"})
		assert.True(t, isErr)
		assert.Contains(t, text, "Search failed")
	})

	t.Run("empty query", func(t *testing.T) {
		ctx, session, _ := setup(t, &fakeSearcher{})
		_, isErr := call(t, ctx, session, "search_frames", map[string]any{"query": ""})
		assert.True(t, isErr)
	})

	t.Run("no results", func(t *testing.T) {
		ctx, session, _ := setup(t, &fakeSearcher{})
		text, isErr := call(t, ctx, session, "search_frames", map[string]any{"query": "cart"})
		assert.False(t, isErr)
		assert.Contains(t, text, "No frames found")
	})

	t.Run("results", func(t *testing.T) {
		searcher := &fakeSearcher{results: []models.IndexedFrame{{ID: "KEY9/1:2", FrameName: "Cart", Score: 0.9}}}
		ctx, session, _ := setup(t, searcher)
		text, isErr := call(t, ctx, session, "search_frames", map[string]any{"query": "cart", "limit": 3})
		require.False(t, isErr)
		out := decodeJob(t, text)
		assert.EqualValues(t, 1, out["count"])
		assert.Equal(t, 3, searcher.limit)
	})
}
