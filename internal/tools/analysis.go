package tools

import (
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/designscan/internal/figma"
	"github.com/raphaelgruber/designscan/internal/models"
)

const (
	defaultWaitSeconds = 60
	maxWaitSeconds     = 600
	maxConcurrency     = 10
)

// StartAnalysisInput defines the input schema for start_analysis.
type StartAnalysisInput struct {
	URL            string `json:"url" jsonschema:"Figma file, design or prototype URL; a node-id query limits analysis to that subtree"`
	Index          bool   `json:"index,omitempty" jsonschema:"Store analyzed frames in the search index"`
	IncludeRawText bool   `json:"include_raw_text,omitempty" jsonschema:"Keep the raw model response on each frame"`
	MaxConcurrency int    `json:"max_concurrency,omitempty" jsonschema:"Frames analyzed at once, 1-10; server default when omitted"`
	ContextHint    string `json:"context_hint,omitempty" jsonschema:"Extra product context passed to the vision model"`
}

// JobInput identifies one analysis job.
type JobInput struct {
	JobID         string `json:"job_id" jsonschema:"Job id returned by start_analysis"`
	IncludeFrames bool   `json:"include_frames,omitempty" jsonschema:"Include every analyzed frame spec, not just the summary"`
}

// ListAnalysesInput defines the input schema for list_analyses.
type ListAnalysesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max jobs 1-100, default 20"`
}

// WaitAnalysisInput defines the input schema for wait_analysis.
type WaitAnalysisInput struct {
	JobID          string `json:"job_id" jsonschema:"Job id returned by start_analysis"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"Give up after this many seconds, default 60, max 600"`
	IncludeFrames  bool   `json:"include_frames,omitempty" jsonschema:"Include every analyzed frame spec in the final result"`
}

// jobView is the tool rendering of a job.
type jobView struct {
	models.Job
	TimedOut bool `json:"timed_out,omitempty"`
}

func viewJob(job models.Job, includeFrames bool) jobView {
	if !includeFrames && job.Result != nil {
		res := *job.Result
		res.Frames = nil
		job.Result = &res
	}
	return jobView{Job: job}
}

// NewStartAnalysisHandler creates the start_analysis tool handler.
func NewStartAnalysisHandler(deps *Dependencies) mcp.ToolHandlerFor[StartAnalysisInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StartAnalysisInput) (*mcp.CallToolResult, any, error) {
		url := strings.TrimSpace(input.URL)
		if url == "" {
			return ErrorResult("URL cannot be empty", "Pass a figma.com file or design URL"), nil, nil
		}
		if _, err := figma.ParseSourceURL(url); err != nil {
			return ErrorResult("Invalid Figma URL: "+err.Error(), "Use https://www.figma.com/design/<file-key>/..."), nil, nil
		}
		if input.MaxConcurrency < 0 || input.MaxConcurrency > maxConcurrency {
			return ErrorResult("max_concurrency must be 1-10", "Omit it to use the server default"), nil, nil
		}

		job := deps.Jobs.StartJob(url, models.StartOptions{
			Index:          input.Index,
			IncludeRawText: input.IncludeRawText,
			MaxConcurrency: input.MaxConcurrency,
			ContextHint:    input.ContextHint,
		})
		deps.logger().Info("analysis started", "job_id", job.ID, "file_key", job.Source.FileKey)
		return JSONResult(viewJob(job, false)), nil, nil
	}
}

// NewGetAnalysisHandler creates the get_analysis tool handler.
func NewGetAnalysisHandler(deps *Dependencies) mcp.ToolHandlerFor[JobInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input JobInput) (*mcp.CallToolResult, any, error) {
		if input.JobID == "" {
			return ErrorResult("job_id cannot be empty", "Use list_analyses to find job ids"), nil, nil
		}
		job, ok := deps.Jobs.GetJob(input.JobID)
		if !ok {
			return ErrorResult("Job not found: "+input.JobID, "Finished jobs are evicted over time; use list_analyses"), nil, nil
		}
		return JSONResult(viewJob(job, input.IncludeFrames)), nil, nil
	}
}

// NewListAnalysesHandler creates the list_analyses tool handler.
func NewListAnalysesHandler(deps *Dependencies) mcp.ToolHandlerFor[ListAnalysesInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListAnalysesInput) (*mcp.CallToolResult, any, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			return ErrorResult("Limit must be 1-100", "Reduce limit value"), nil, nil
		}

		list := deps.Jobs.ListJobs(limit)
		views := make([]jobView, len(list))
		for i, j := range list {
			views[i] = viewJob(j, false)
		}
		return JSONResult(map[string]any{"jobs": views, "count": len(views)}), nil, nil
	}
}

// NewDeleteAnalysisHandler creates the delete_analysis tool handler.
func NewDeleteAnalysisHandler(deps *Dependencies) mcp.ToolHandlerFor[JobInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input JobInput) (*mcp.CallToolResult, any, error) {
		if input.JobID == "" {
			return ErrorResult("job_id cannot be empty", "Use list_analyses to find job ids"), nil, nil
		}
		if !deps.Jobs.DeleteJob(input.JobID) {
			return ErrorResult("Job not found: "+input.JobID, "It may already be deleted or evicted"), nil, nil
		}
		deps.logger().Info("analysis deleted", "job_id", input.JobID)
		return TextResult("Deleted job " + input.JobID), nil, nil
	}
}

// NewWaitAnalysisHandler blocks until a job finishes or the timeout passes.
func NewWaitAnalysisHandler(deps *Dependencies) mcp.ToolHandlerFor[WaitAnalysisInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input WaitAnalysisInput) (*mcp.CallToolResult, any, error) {
		if input.JobID == "" {
			return ErrorResult("job_id cannot be empty", "Use list_analyses to find job ids"), nil, nil
		}
		timeout := input.TimeoutSeconds
		if timeout <= 0 {
			timeout = defaultWaitSeconds
		}
		timeout = min(timeout, maxWaitSeconds)

		waitCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()

		snapshots, err := deps.Jobs.Subscribe(waitCtx, input.JobID)
		if err != nil {
			return ErrorResult("Job not found: "+input.JobID, "Use list_analyses to find job ids"), nil, nil
		}

		var last *models.Job
		for snap := range snapshots {
			job := snap.Job
			last = &job
		}
		if last == nil || !last.Status.IsTerminal() {
			current, ok := deps.Jobs.GetJob(input.JobID)
			if !ok {
				return ErrorResult("Job was deleted while waiting: "+input.JobID, ""), nil, nil
			}
			view := viewJob(current, false)
			view.TimedOut = true
			return JSONResult(view), nil, nil
		}
		return JSONResult(viewJob(*last, input.IncludeFrames)), nil, nil
	}
}
