// Package models defines the data structures shared across designscan.
package models

import (
	"encoding/json"
	"time"
)

// JobStatus represents the state of an analysis job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions can occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// SourceRef describes the input document of a job.
// FileKey and NodeID are empty when URL could not be parsed.
type SourceRef struct {
	URL     string `json:"url"`
	FileKey string `json:"file_key,omitempty"`
	NodeID  string `json:"node_id,omitempty"`
}

// StartOptions configures a single job run.
type StartOptions struct {
	// Index pushes qualifying frame specs into the vector index
	Index bool `json:"index"`
	// IncludeRawText keeps the raw model response on every frame spec
	IncludeRawText bool `json:"include_raw_text"`
	// MaxConcurrency caps in-flight analysis calls (0 = process default)
	MaxConcurrency int `json:"max_concurrency,omitempty"`
	// ContextHint is appended to every analysis prompt
	ContextHint string `json:"context_hint,omitempty"`
}

// Progress holds point-in-time batch counters.
type Progress struct {
	TotalItems      int    `json:"total_items"`
	AnalyzedItems   int    `json:"analyzed_items"`
	CurrentItemName string `json:"current_item_name,omitempty"`
}

// Percentage is derived from the counters and never stored.
func (p Progress) Percentage() int {
	if p.TotalItems <= 0 {
		return 0
	}
	return p.AnalyzedItems * 100 / p.TotalItems
}

// MarshalJSON adds the derived percentage to the serialized counters.
func (p Progress) MarshalJSON() ([]byte, error) {
	type plain Progress
	return json.Marshal(struct {
		plain
		Percentage int `json:"percentage"`
	}{plain(p), p.Percentage()})
}

// UnmarshalJSON ignores the derived percentage field.
func (p *Progress) UnmarshalJSON(data []byte) error {
	type plain Progress
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Progress(v)
	return nil
}

// Job is one batch analysis run.
type Job struct {
	ID          string            `json:"id"`
	Source      SourceRef         `json:"source"`
	Options     StartOptions      `json:"options"`
	Status      JobStatus         `json:"status"`
	Progress    Progress          `json:"progress"`
	Result      *AggregatedResult `json:"result,omitempty"`
	Error       *string           `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Clone returns a copy that shares no mutable state with j.
func (j Job) Clone() Job {
	out := j
	if j.Result != nil {
		r := j.Result.Clone()
		out.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		out.Error = &e
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
