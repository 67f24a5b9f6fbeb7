package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/designscan/internal/extract"
	"github.com/raphaelgruber/designscan/internal/figma"
	"github.com/raphaelgruber/designscan/internal/jobs"
	"github.com/raphaelgruber/designscan/internal/llm"
	"github.com/raphaelgruber/designscan/internal/metrics"
	"github.com/raphaelgruber/designscan/internal/models"
)

const (
	// DefaultMaxConcurrency is the number of frames analyzed at once per job.
	DefaultMaxConcurrency = 3
	// MaxConcurrencyLimit caps per-job overrides.
	MaxConcurrencyLimit = 10
)

// Deps are the collaborators of the analysis service.
// Analyzer and Indexer may be nil: frames are then skipped or not indexed.
type Deps struct {
	Store    *jobs.Store
	Fetcher  DocumentFetcher
	Resolver ArtifactResolver
	Analyzer Analyzer
	Indexer  *Indexer
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

// Options tunes the analysis service.
type Options struct {
	// MaxConcurrency is used when a job does not set its own
	MaxConcurrency int
	// MaxItems bounds the frames discovered per job
	MaxItems int
}

// AnalysisService runs analysis jobs in the background.
type AnalysisService struct {
	store          *jobs.Store
	fetcher        DocumentFetcher
	resolver       ArtifactResolver
	analyzer       Analyzer
	indexer        *Indexer
	discoverer     figma.Discoverer
	maxConcurrency int
	metrics        *metrics.Collector
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAnalysisService creates the service. Deps.Store, Fetcher and Resolver are required.
func NewAnalysisService(deps Deps, opts Options) *AnalysisService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := deps.Store
	if store == nil {
		store = jobs.NewStore(jobs.WithLogger(logger))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &AnalysisService{
		store:          store,
		fetcher:        deps.Fetcher,
		resolver:       deps.Resolver,
		analyzer:       deps.Analyzer,
		indexer:        deps.Indexer,
		discoverer:     figma.Discoverer{MaxItems: opts.MaxItems, Logger: logger},
		maxConcurrency: clampConcurrency(opts.MaxConcurrency, DefaultMaxConcurrency),
		metrics:        deps.Metrics,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func clampConcurrency(n, fallback int) int {
	if n <= 0 {
		n = fallback
	}
	return min(max(n, 1), MaxConcurrencyLimit)
}

// StartJob creates a pending job and runs it in the background.
// It never blocks on analysis work.
func (s *AnalysisService) StartJob(source string, opts models.StartOptions) models.Job {
	ref, err := figma.ParseSourceURL(source)
	if err != nil {
		// Stored as given; the runner fails the job during discovery.
		ref = models.SourceRef{URL: source}
	}

	job := s.store.Create(ref, opts)
	s.metrics.Add(metrics.CounterJobsStarted, 1)
	s.logger.Info("job started", "job_id", job.ID, "source", source, "index", opts.Index)

	s.wg.Add(1)
	go s.run(job.ID)
	return job
}

// GetJob returns a snapshot of a job.
func (s *AnalysisService) GetJob(id string) (models.Job, bool) {
	return s.store.Get(id)
}

// ListJobs returns up to limit jobs, newest first.
func (s *AnalysisService) ListJobs(limit int) []models.Job {
	return s.store.List(limit)
}

// DeleteJob removes a job. A running job keeps running but its updates are dropped.
func (s *AnalysisService) DeleteJob(id string) bool {
	return s.store.Delete(id)
}

// Subscribe streams snapshots of a job until it finishes.
func (s *AnalysisService) Subscribe(ctx context.Context, id string) (<-chan jobs.Snapshot, error) {
	return s.store.Subscribe(ctx, id)
}

// Close cancels running jobs and waits for them to finish.
func (s *AnalysisService) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *AnalysisService) run(jobID string) {
	defer s.wg.Done()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job goroutine panicked", "job_id", jobID, "panic", r)
			s.fail(jobID, start, fmt.Errorf("internal panic: %v", r))
		}
	}()

	job, err := s.store.Update(jobID, func(j *models.Job) {
		now := time.Now()
		j.Status = models.JobStatusProcessing
		j.StartedAt = &now
	})
	if err != nil {
		s.logger.Warn("job vanished before start", "job_id", jobID, "error", err)
		return
	}

	result, err := s.execute(s.ctx, job)
	if err != nil {
		s.fail(jobID, start, err)
		return
	}
	s.complete(jobID, start, result)
}

func (s *AnalysisService) execute(ctx context.Context, job models.Job) (models.AggregatedResult, error) {
	ref, err := figma.ParseSourceURL(job.Source.URL)
	if err != nil {
		return models.AggregatedResult{}, err
	}

	discoverStart := time.Now()
	doc, err := s.fetcher.FetchDocument(ctx, ref.FileKey, ref.NodeID)
	if err != nil {
		s.metrics.RecordError(metrics.OpDiscover, time.Since(discoverStart))
		return models.AggregatedResult{}, err
	}
	items := s.discoverer.Discover(doc, ref.NodeID)
	s.metrics.RecordTiming(metrics.OpDiscover, time.Since(discoverStart))

	if _, err := s.store.Update(job.ID, func(j *models.Job) {
		j.Progress.TotalItems = len(items)
		j.Progress.AnalyzedItems = 0
	}); err != nil {
		return models.AggregatedResult{}, fmt.Errorf("record discovery: %w", err)
	}
	s.logger.Info("frames discovered", "job_id", job.ID, "file_key", ref.FileKey, "frames", len(items))

	meta := ResultMeta{FileKey: ref.FileKey, RootNodeID: ref.NodeID, StartedAt: discoverStart}
	if doc != nil {
		meta.FileName = doc.Name
	}
	if len(items) == 0 {
		return Aggregate(meta, nil, 0, nil), nil
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	resolveStart := time.Now()
	urls, err := s.resolver.Resolve(ctx, ref.FileKey, ids)
	if err != nil {
		s.metrics.RecordError(metrics.OpResolve, time.Since(resolveStart))
		return models.AggregatedResult{}, err
	}
	s.metrics.RecordTiming(metrics.OpResolve, time.Since(resolveStart))

	records, err := s.analyzeAll(ctx, job, items, urls)
	if err != nil {
		return models.AggregatedResult{}, err
	}

	specs := make([]models.FrameSpec, 0, len(records))
	var skipped []string
	for i, r := range records {
		if r == nil {
			skipped = append(skipped, items[i].ID)
			continue
		}
		specs = append(specs, *r)
	}
	s.metrics.Add(metrics.CounterFramesSkipped, int64(len(skipped)))

	result := Aggregate(meta, specs, len(items), skipped)
	if job.Options.Index {
		if s.indexer == nil {
			s.logger.Warn("indexing requested but no index configured", "job_id", job.ID)
		} else {
			result.IndexedFrames = s.indexer.Index(ctx, job.ID, result)
		}
	}
	return result, nil
}

// analyzeAll runs frames in chunks of the job's concurrency, waiting for each chunk.
// The returned slice keeps discovery order; nil marks a skipped frame.
func (s *AnalysisService) analyzeAll(ctx context.Context, job models.Job, items []models.WorkItem, urls map[string]string) ([]*models.FrameSpec, error) {
	limit := clampConcurrency(job.Options.MaxConcurrency, s.maxConcurrency)
	records := make([]*models.FrameSpec, len(items))

	for start := 0; start < len(items); start += limit {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis interrupted: %w", err)
		}
		end := min(start+limit, len(items))

		var g errgroup.Group
		for idx := start; idx < end; idx++ {
			item := items[idx]
			if _, err := s.store.Update(job.ID, func(j *models.Job) {
				j.Progress.CurrentItemName = item.Name
				j.Progress.AnalyzedItems = idx + 1
			}); err != nil {
				s.logger.Debug("progress update dropped", "job_id", job.ID, "error", err)
			}
			g.Go(func() error {
				records[idx] = s.analyzeItem(ctx, job, item, urls[item.ID])
				return nil
			})
		}
		_ = g.Wait()
	}
	return records, nil
}

// analyzeItem returns nil when the frame is skipped. Failures never leave this function.
func (s *AnalysisService) analyzeItem(ctx context.Context, job models.Job, item models.WorkItem, imageURL string) (spec *models.FrameSpec) {
	logger := s.logger.With("job_id", job.ID, "frame_id", item.ID, "frame_name", item.Name)

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("frame analysis panicked", "panic", r)
			spec = nil
		}
	}()

	if strings.TrimSpace(imageURL) == "" {
		logger.Warn("frame skipped: no rendered image")
		return nil
	}
	if s.analyzer == nil {
		logger.Debug("frame skipped: analysis disabled")
		return nil
	}

	start := time.Now()
	raw, err := s.analyzer.Analyze(ctx, imageURL, frameHint(item, job.Options.ContextHint))
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordError(metrics.OpAnalyze, duration)
		level := slog.LevelWarn
		if errors.Is(err, llm.ErrFatalAPI) {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "frame skipped: analysis failed", "duration_ms", duration.Milliseconds(), "error", err)
		return nil
	}
	s.metrics.RecordTiming(metrics.OpAnalyze, duration)

	out := extract.Extract(raw, item.Name)
	out.FrameID = item.ID
	if job.Options.IncludeRawText {
		out.RawText = raw
	}
	logger.Debug("frame analyzed", "duration_ms", duration.Milliseconds(), "components", len(out.Components))
	return &out
}

func frameHint(item models.WorkItem, userHint string) string {
	var parts []string
	if item.Name != "" {
		parts = append(parts, "Frame: "+item.Name)
	}
	if item.PageName != "" {
		parts = append(parts, "Page: "+item.PageName)
	}
	if item.NodeType != "" {
		parts = append(parts, "Node type: "+item.NodeType)
	}
	if h := strings.TrimSpace(userHint); h != "" {
		parts = append(parts, h)
	}
	return strings.Join(parts, "\n")
}

func (s *AnalysisService) complete(jobID string, start time.Time, result models.AggregatedResult) {
	_, err := s.store.Update(jobID, func(j *models.Job) {
		now := time.Now()
		j.Status = models.JobStatusCompleted
		j.Result = &result
		j.Error = nil
		j.CompletedAt = &now
		j.Progress.CurrentItemName = ""
	})
	if err != nil {
		s.logger.Warn("could not record job completion", "job_id", jobID, "error", err)
		return
	}
	s.metrics.RecordTiming(metrics.OpJob, time.Since(start))
	s.metrics.Add(metrics.CounterJobsCompleted, 1)
	s.logger.Info("job completed",
		"job_id", jobID,
		"total", result.TotalFrames,
		"analyzed", result.AnalyzedFrames,
		"skipped", result.SkippedFrames,
		"indexed", result.IndexedFrames,
		"duration_ms", time.Since(start).Milliseconds())
}

func (s *AnalysisService) fail(jobID string, start time.Time, cause error) {
	msg := cause.Error()
	_, err := s.store.Update(jobID, func(j *models.Job) {
		now := time.Now()
		j.Status = models.JobStatusFailed
		j.Error = &msg
		j.Result = nil
		j.CompletedAt = &now
	})
	if err != nil {
		s.logger.Warn("could not record job failure", "job_id", jobID, "error", err, "cause", cause)
		return
	}
	s.metrics.RecordError(metrics.OpJob, time.Since(start))
	s.metrics.Add(metrics.CounterJobsFailed, 1)
	s.logger.Error("job failed", "job_id", jobID, "error", cause)
}
