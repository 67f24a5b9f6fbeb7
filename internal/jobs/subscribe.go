package jobs

import (
	"context"

	"github.com/raphaelgruber/designscan/internal/models"
)

// SnapshotKind tags where a snapshot sits in a subscription stream.
type SnapshotKind string

const (
	// SnapshotInitial is the job state at subscription time.
	SnapshotInitial SnapshotKind = "initial"
	// SnapshotLive is a state change observed while watching.
	SnapshotLive SnapshotKind = "live"
	// SnapshotTerminal is the final state. The stream closes after it.
	SnapshotTerminal SnapshotKind = "terminal"
)

// Snapshot is one element of a per-job subscription stream.
type Snapshot struct {
	Kind SnapshotKind `json:"kind"`
	Job  models.Job   `json:"job"`
}

// Subscribe streams snapshots of one job until it finishes.
// A job that already finished yields a single terminal snapshot.
// The stream also closes when ctx is done or the job is deleted.
func (s *Store) Subscribe(ctx context.Context, jobID string) (<-chan Snapshot, error) {
	// Register before reading state so a terminal event cannot slip between the two.
	events, cancel := s.bus.Subscribe(jobID)

	current, version, ok := s.get(jobID)
	if !ok {
		cancel()
		return nil, ErrJobNotFound
	}

	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		defer cancel()

		send := func(kind SnapshotKind, job models.Job) bool {
			select {
			case out <- Snapshot{Kind: kind, Job: job}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if current.Status.IsTerminal() {
			send(SnapshotTerminal, current)
			return
		}
		if !send(SnapshotInitial, current) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok || ev.Deleted {
					return
				}
				if ev.Version <= version {
					continue
				}
				version = ev.Version
				if ev.Job.Status.IsTerminal() {
					send(SnapshotTerminal, ev.Job)
					return
				}
				if !send(SnapshotLive, ev.Job) {
					return
				}
			}
		}
	}()
	return out, nil
}
