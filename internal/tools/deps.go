// Package tools provides the MCP tool handlers for designscan.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/designscan/internal/jobs"
	"github.com/raphaelgruber/designscan/internal/models"
)

// JobService is the job engine the tools drive.
type JobService interface {
	StartJob(source string, opts models.StartOptions) models.Job
	GetJob(id string) (models.Job, bool)
	ListJobs(limit int) []models.Job
	DeleteJob(id string) bool
	Subscribe(ctx context.Context, id string) (<-chan jobs.Snapshot, error)
}

// FrameSearcher answers semantic queries over indexed frames.
type FrameSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.IndexedFrame, error)
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Jobs   JobService
	Search FrameSearcher
	Logger *slog.Logger
}

func (d *Dependencies) logger() *slog.Logger {
	if d == nil || d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
