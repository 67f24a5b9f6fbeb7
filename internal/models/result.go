package models

import (
	"maps"
	"slices"
	"time"
)

// Summary holds derived totals across all analyzed frames.
type Summary struct {
	TotalComponents   int            `json:"total_components" yaml:"total_components"`
	TotalRules        int            `json:"total_rules" yaml:"total_rules"`
	TotalStates       int            `json:"total_states" yaml:"total_states"`
	TotalInteractions int            `json:"total_interactions" yaml:"total_interactions"`
	ComponentTypes    map[string]int `json:"component_types" yaml:"component_types"`
}

// AggregatedResult is the terminal payload of a completed job.
type AggregatedResult struct {
	FileKey        string      `json:"file_key" yaml:"file_key"`
	FileName       string      `json:"file_name" yaml:"file_name"`
	RootNodeID     string      `json:"root_node_id,omitempty" yaml:"root_node_id,omitempty"`
	Frames         []FrameSpec `json:"frames" yaml:"frames"`
	TotalFrames    int         `json:"total_frames" yaml:"total_frames"`
	AnalyzedFrames int         `json:"analyzed_frames" yaml:"analyzed_frames"`
	SkippedFrames  int         `json:"skipped_frames" yaml:"skipped_frames"`
	// SkippedFrameIDs lists the frames that produced no spec, in discovery order
	SkippedFrameIDs []string  `json:"skipped_frame_ids,omitempty" yaml:"skipped_frame_ids,omitempty"`
	IndexedFrames   int       `json:"indexed_frames" yaml:"indexed_frames"`
	Summary         Summary   `json:"summary" yaml:"summary"`
	DurationMs      int64     `json:"duration_ms" yaml:"duration_ms"`
	AnalyzedAt      time.Time `json:"analyzed_at" yaml:"analyzed_at"`
}

// Clone returns a deep copy of the result.
func (r AggregatedResult) Clone() AggregatedResult {
	out := r
	if r.Frames != nil {
		out.Frames = make([]FrameSpec, len(r.Frames))
		for i, f := range r.Frames {
			out.Frames[i] = f.Clone()
		}
	}
	out.SkippedFrameIDs = slices.Clone(r.SkippedFrameIDs)
	out.Summary.ComponentTypes = maps.Clone(r.Summary.ComponentTypes)
	return out
}

// IndexedFrame is a frame spec stored in the vector index.
type IndexedFrame struct {
	ID        string         `json:"id"`
	JobID     string         `json:"job_id"`
	FrameID   string         `json:"frame_id"`
	FrameName string         `json:"frame_name"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Score     float64        `json:"score,omitempty"`
	IndexedAt time.Time      `json:"indexed_at"`
}
