package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/designscan/internal/figma"
	"github.com/raphaelgruber/designscan/internal/jobs"
	"github.com/raphaelgruber/designscan/internal/metrics"
	"github.com/raphaelgruber/designscan/internal/models"
)

const testURL = "https://www.figma.com/design/FILE1/Shop"

type stubFetcher struct {
	doc *figma.Document
	err error
}

func (f stubFetcher) FetchDocument(context.Context, string, string) (*figma.Document, error) {
	return f.doc, f.err
}

type panicFetcher struct{}

func (panicFetcher) FetchDocument(context.Context, string, string) (*figma.Document, error) {
	panic("document tree exploded")
}

type stubResolver struct {
	missing map[string]bool
}

func (r stubResolver) Resolve(_ context.Context, _ string, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if !r.missing[id] {
			out[id] = "https://img.example/" + id
		}
	}
	return out, nil
}

// countingAnalyzer instruments in-flight calls.
type countingAnalyzer struct {
	delay    time.Duration
	failURLs map[string]bool
	panicURL string

	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32

	mu    sync.Mutex
	hints []string
}

func (a *countingAnalyzer) Analyze(_ context.Context, imageURL, hint string) (string, error) {
	n := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}
	a.calls.Add(1)

	a.mu.Lock()
	a.hints = append(a.hints, hint)
	a.mu.Unlock()

	time.Sleep(a.delay)

	if imageURL == a.panicURL {
		panic("analyzer bug")
	}
	if a.failURLs[imageURL] {
		return "", errors.New("vision service timeout")
	}
	id := strings.TrimPrefix(imageURL, "https://img.example/")
	return fmt.Sprintf("```json\n{\"components\": [{\"name\": \"Button %s\", \"type\": \"Button\"}], \"businessRules\": [\"rule for %s\"]}\n```", id, id), nil
}

func docWithFrames(n int) *figma.Document {
	page := &figma.Node{ID: "0:1", Name: "Page 1", Type: figma.NodeTypeCanvas}
	for i := 1; i <= n; i++ {
		page.Children = append(page.Children, &figma.Node{
			ID:   fmt.Sprintf("1:%d", i),
			Name: fmt.Sprintf("Frame %d", i),
			Type: figma.NodeTypeFrame,
		})
	}
	return &figma.Document{Name: "Shop", Document: &figma.Node{ID: "0:0", Type: "DOCUMENT", Children: []*figma.Node{page}}}
}

func newTestService(t *testing.T, deps Deps) *AnalysisService {
	t.Helper()
	if deps.Store == nil {
		deps.Store = jobs.NewStore()
	}
	if deps.Resolver == nil {
		deps.Resolver = stubResolver{}
	}
	svc := NewAnalysisService(deps, Options{MaxConcurrency: 3})
	t.Cleanup(svc.Close)
	return svc
}

// watch subscribes right after start and collects every snapshot until the stream closes.
func watch(t *testing.T, svc *AnalysisService, id string) []jobs.Snapshot {
	t.Helper()
	ch, err := svc.Subscribe(context.Background(), id)
	require.NoError(t, err)

	var out []jobs.Snapshot
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, snap)
		case <-timeout:
			t.Fatal("job did not finish")
			return out
		}
	}
}

func finalJob(t *testing.T, snaps []jobs.Snapshot) models.Job {
	t.Helper()
	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]
	require.Equal(t, jobs.SnapshotTerminal, last.Kind)
	return last.Job
}

func assertJobInvariants(t *testing.T, snaps []jobs.Snapshot) {
	t.Helper()
	terminals := 0
	prev := 0
	for _, snap := range snaps {
		j := snap.Job
		if j.Progress.TotalItems > 0 {
			assert.LessOrEqual(t, j.Progress.AnalyzedItems, j.Progress.TotalItems)
		}
		assert.GreaterOrEqual(t, j.Progress.AnalyzedItems, prev, "analyzed items never decrease")
		prev = j.Progress.AnalyzedItems

		assert.Equal(t, j.Status == models.JobStatusCompleted, j.Result != nil)
		assert.Equal(t, j.Status == models.JobStatusFailed, j.Error != nil)
		if snap.Kind == jobs.SnapshotTerminal {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestZeroItemsCompletes(t *testing.T) {
	analyzer := &countingAnalyzer{}
	svc := newTestService(t, Deps{Fetcher: stubFetcher{doc: docWithFrames(0)}, Analyzer: analyzer})

	job := svc.StartJob(testURL, models.StartOptions{})
	snaps := watch(t, svc, job.ID)
	assertJobInvariants(t, snaps)

	final := finalJob(t, snaps)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	assert.Zero(t, final.Progress.TotalItems)
	require.NotNil(t, final.Result)
	assert.Empty(t, final.Result.Frames)
	assert.Zero(t, final.Result.TotalFrames)
	assert.Zero(t, analyzer.calls.Load())
}

func TestChunkedRunRespectsConcurrency(t *testing.T) {
	analyzer := &countingAnalyzer{delay: 30 * time.Millisecond}
	svc := newTestService(t, Deps{Fetcher: stubFetcher{doc: docWithFrames(5)}, Analyzer: analyzer})

	job := svc.StartJob(testURL, models.StartOptions{})
	snaps := watch(t, svc, job.ID)
	assertJobInvariants(t, snaps)

	final := finalJob(t, snaps)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	assert.Equal(t, 5, final.Progress.TotalItems)
	assert.Equal(t, 5, final.Progress.AnalyzedItems)
	assert.Equal(t, 100, final.Progress.Percentage())
	assert.LessOrEqual(t, analyzer.peak.Load(), int32(3))
	assert.Equal(t, int32(3), analyzer.peak.Load(), "first chunk runs three frames at once")
	assert.Equal(t, int32(5), analyzer.calls.Load())

	var seen []int
	for _, snap := range snaps {
		if snap.Job.Progress.TotalItems == 5 {
			n := snap.Job.Progress.AnalyzedItems
			if len(seen) == 0 || seen[len(seen)-1] != n {
				seen = append(seen, n)
			}
		}
	}
	require.NotEmpty(t, seen)
	assert.IsIncreasing(t, seen)
	assert.Equal(t, 5, seen[len(seen)-1])

	result := final.Result
	require.NotNil(t, result)
	assert.Equal(t, "FILE1", result.FileKey)
	assert.Equal(t, "Shop", result.FileName)
	assert.Equal(t, 5, result.AnalyzedFrames)
	assert.Zero(t, result.SkippedFrames)
	assert.Empty(t, result.SkippedFrameIDs)
	require.Len(t, result.Frames, 5)
	for i, f := range result.Frames {
		assert.Equal(t, fmt.Sprintf("1:%d", i+1), f.FrameID, "frames keep discovery order")
		assert.Empty(t, f.RawText)
	}
	assert.Equal(t, 5, result.Summary.TotalComponents)
	assert.Equal(t, 5, result.Summary.ComponentTypes["button"])
}

func TestPerJobConcurrencyOverride(t *testing.T) {
	analyzer := &countingAnalyzer{delay: 20 * time.Millisecond}
	svc := newTestService(t, Deps{Fetcher: stubFetcher{doc: docWithFrames(6)}, Analyzer: analyzer})

	job := svc.StartJob(testURL, models.StartOptions{MaxConcurrency: 1, IncludeRawText: true, ContextHint: "checkout flow"})
	final := finalJob(t, watch(t, svc, job.ID))

	assert.Equal(t, int32(1), analyzer.peak.Load())
	require.NotNil(t, final.Result)
	assert.NotEmpty(t, final.Result.Frames[0].RawText)

	analyzer.mu.Lock()
	defer analyzer.mu.Unlock()
	require.NotEmpty(t, analyzer.hints)
	assert.Contains(t, analyzer.hints[0], "Frame: Frame 1")
	assert.Contains(t, analyzer.hints[0], "Page: Page 1")
	assert.Contains(t, analyzer.hints[0], "checkout flow")
}

func TestFailingItemIsSkipped(t *testing.T) {
	analyzer := &countingAnalyzer{failURLs: map[string]bool{"https://img.example/1:2": true}}
	svc := newTestService(t, Deps{Fetcher: stubFetcher{doc: docWithFrames(4)}, Analyzer: analyzer})

	job := svc.StartJob(testURL, models.StartOptions{})
	snaps := watch(t, svc, job.ID)
	assertJobInvariants(t, snaps)

	final := finalJob(t, snaps)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	require.NotNil(t, final.Result)
	assert.Equal(t, 3, final.Result.AnalyzedFrames)
	assert.Equal(t, 1, final.Result.SkippedFrames)
	assert.Equal(t, []string{"1:2"}, final.Result.SkippedFrameIDs)
	for _, f := range final.Result.Frames {
		assert.NotEqual(t, "1:2", f.FrameID)
	}
}

func TestPanickingItemIsSkipped(t *testing.T) {
	analyzer := &countingAnalyzer{panicURL: "https://img.example/1:1"}
	svc := newTestService(t, Deps{Fetcher: stubFetcher{doc: docWithFrames(3)}, Analyzer: analyzer})

	job := svc.StartJob(testURL, models.StartOptions{})
	final := finalJob(t, watch(t, svc, job.ID))

	assert.Equal(t, models.JobStatusCompleted, final.Status)
	assert.Equal(t, 2, final.Result.AnalyzedFrames)
	assert.Equal(t, 1, final.Result.SkippedFrames)
	assert.Equal(t, []string{"1:1"}, final.Result.SkippedFrameIDs)
}

func TestMissingArtifactsAndNoAnalyzerSkip(t *testing.T) {
	t.Run("missing artifact", func(t *testing.T) {
		analyzer := &countingAnalyzer{}
		svc := newTestService(t, Deps{
			Fetcher:  stubFetcher{doc: docWithFrames(3)},
			Resolver: stubResolver{missing: map[string]bool{"1:3": true}},
			Analyzer: analyzer,
		})
		final := finalJob(t, watch(t, svc, svc.StartJob(testURL, models.StartOptions{}).ID))
		assert.Equal(t, 2, final.Result.AnalyzedFrames)
		assert.Equal(t, 1, final.Result.SkippedFrames)
		assert.Equal(t, []string{"1:3"}, final.Result.SkippedFrameIDs)
		assert.Equal(t, int32(2), analyzer.calls.Load())
	})

	t.Run("analysis disabled", func(t *testing.T) {
		svc := newTestService(t, Deps{Fetcher: stubFetcher{doc: docWithFrames(3)}})
		final := finalJob(t, watch(t, svc, svc.StartJob(testURL, models.StartOptions{}).ID))
		assert.Equal(t, models.JobStatusCompleted, final.Status)
		assert.Zero(t, final.Result.AnalyzedFrames)
		assert.Equal(t, 3, final.Result.SkippedFrames)
		assert.Equal(t, []string{"1:1", "1:2", "1:3"}, final.Result.SkippedFrameIDs)
	})
}

func TestDiscoveryFailureFailsJob(t *testing.T) {
	store := jobs.NewStore()
	events, cancel := store.Bus().Subscribe("")
	defer cancel()

	svc := newTestService(t, Deps{Store: store, Fetcher: stubFetcher{err: errors.New("figma unavailable")}})
	job := svc.StartJob(testURL, models.StartOptions{})
	assert.Equal(t, models.JobStatusPending, job.Status)

	var statuses []models.JobStatus
	timeout := time.After(5 * time.Second)
	for len(statuses) == 0 || !statuses[len(statuses)-1].IsTerminal() {
		select {
		case ev := <-events:
			if n := len(statuses); n == 0 || statuses[n-1] != ev.Job.Status {
				statuses = append(statuses, ev.Job.Status)
			}
		case <-timeout:
			t.Fatal("job did not fail")
		}
	}
	assert.Equal(t, []models.JobStatus{models.JobStatusPending, models.JobStatusProcessing, models.JobStatusFailed}, statuses)

	final, ok := svc.GetJob(job.ID)
	require.True(t, ok)
	require.NotNil(t, final.Error)
	assert.Equal(t, "figma unavailable", *final.Error)
	assert.Nil(t, final.Result)
	assert.NotNil(t, final.CompletedAt)
}

func TestMalformedSourceFailsJob(t *testing.T) {
	svc := newTestService(t, Deps{Fetcher: stubFetcher{doc: docWithFrames(1)}})
	job := svc.StartJob("https://example.com/not-figma", models.StartOptions{})
	assert.Equal(t, "https://example.com/not-figma", job.Source.URL)

	final := finalJob(t, watch(t, svc, job.ID))
	assert.Equal(t, models.JobStatusFailed, final.Status)
	require.NotNil(t, final.Error)
	assert.Contains(t, *final.Error, "invalid figma url")
}

func TestPanicInJobGoroutineFailsJob(t *testing.T) {
	svc := newTestService(t, Deps{Fetcher: panicFetcher{}})
	final := finalJob(t, watch(t, svc, svc.StartJob(testURL, models.StartOptions{}).ID))

	assert.Equal(t, models.JobStatusFailed, final.Status)
	require.NotNil(t, final.Error)
	assert.Contains(t, *final.Error, "document tree exploded")
}

func TestLateSubscriberReceivesTerminalOnly(t *testing.T) {
	svc := newTestService(t, Deps{Fetcher: stubFetcher{doc: docWithFrames(2)}, Analyzer: &countingAnalyzer{}})
	job := svc.StartJob(testURL, models.StartOptions{})
	watch(t, svc, job.ID)

	snaps := watch(t, svc, job.ID)
	require.Len(t, snaps, 1)
	assert.Equal(t, jobs.SnapshotTerminal, snaps[0].Kind)
	assert.Equal(t, models.JobStatusCompleted, snaps[0].Job.Status)
}

func TestJobMetricsRecorded(t *testing.T) {
	collector := metrics.NewCollector()
	svc := newTestService(t, Deps{
		Fetcher:  stubFetcher{doc: docWithFrames(2)},
		Analyzer: &countingAnalyzer{failURLs: map[string]bool{"https://img.example/1:2": true}},
		Metrics:  collector,
	})
	watch(t, svc, svc.StartJob(testURL, models.StartOptions{}).ID)
	svc.Close()

	snap := collector.Snapshot()
	assert.Equal(t, int64(2), snap.Operations[metrics.OpAnalyze].Count)
	assert.Equal(t, int64(1), snap.Operations[metrics.OpAnalyze].Errors)
	assert.Equal(t, int64(1), snap.Counters[metrics.CounterJobsCompleted])
	assert.Equal(t, int64(1), snap.Counters[metrics.CounterFramesSkipped])
}

func TestStartJobDoesNotBlock(t *testing.T) {
	analyzer := &countingAnalyzer{delay: 200 * time.Millisecond}
	svc := newTestService(t, Deps{Fetcher: stubFetcher{doc: docWithFrames(3)}, Analyzer: analyzer})

	start := time.Now()
	job := svc.StartJob(testURL, models.StartOptions{})
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, models.JobStatusPending, job.Status)

	listed := svc.ListJobs(0)
	require.Len(t, listed, 1)
	assert.Equal(t, job.ID, listed[0].ID)

	watch(t, svc, job.ID)
	assert.True(t, svc.DeleteJob(job.ID))
	_, ok := svc.GetJob(job.ID)
	assert.False(t, ok)
}

func TestClampConcurrency(t *testing.T) {
	assert.Equal(t, 3, clampConcurrency(0, 3))
	assert.Equal(t, 1, clampConcurrency(-2, 1))
	assert.Equal(t, 5, clampConcurrency(5, 3))
	assert.Equal(t, MaxConcurrencyLimit, clampConcurrency(50, 3))
}
