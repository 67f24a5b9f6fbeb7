package service

import (
	"slices"
	"strings"
	"time"

	"github.com/raphaelgruber/designscan/internal/models"
)

// ResultMeta is the job-level metadata echoed in an aggregated result.
type ResultMeta struct {
	FileKey    string
	FileName   string
	RootNodeID string
	StartedAt  time.Time
}

// Aggregate combines analyzed frames into the job result.
// records and skippedIDs must be in discovery order; total counts all discovered frames.
func Aggregate(meta ResultMeta, records []models.FrameSpec, total int, skippedIDs []string) models.AggregatedResult {
	frames := make([]models.FrameSpec, len(records))
	copy(frames, records)

	summary := models.Summary{ComponentTypes: map[string]int{}}
	for _, f := range frames {
		summary.TotalComponents += len(f.Components)
		summary.TotalRules += len(f.BusinessRules)
		summary.TotalStates += len(f.States)
		summary.TotalInteractions += len(f.Interactions)
		for _, c := range f.Components {
			t := strings.ToLower(strings.TrimSpace(c.Type))
			if t == "" {
				t = "unknown"
			}
			summary.ComponentTypes[t]++
		}
	}

	now := time.Now()
	var duration int64
	if !meta.StartedAt.IsZero() {
		duration = now.Sub(meta.StartedAt).Milliseconds()
	}

	return models.AggregatedResult{
		FileKey:         meta.FileKey,
		FileName:        meta.FileName,
		RootNodeID:      meta.RootNodeID,
		Frames:          frames,
		TotalFrames:     total,
		AnalyzedFrames:  len(frames),
		SkippedFrames:   len(skippedIDs),
		SkippedFrameIDs: slices.Clone(skippedIDs),
		Summary:         summary,
		DurationMs:      duration,
		AnalyzedAt:      now,
	}
}
