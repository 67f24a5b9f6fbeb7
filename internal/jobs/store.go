// Package jobs keeps analysis jobs in memory and streams their progress.
package jobs

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/designscan/internal/models"
)

const (
	// DefaultCapacity is the store size at which eviction starts.
	DefaultCapacity = 100
	// DefaultSlack is the extra headroom freed by one eviction pass.
	DefaultSlack = 10
)

var (
	// ErrJobNotFound is returned for unknown or deleted job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobTerminal is returned when updating a completed or failed job.
	ErrJobTerminal = errors.New("job already finished")
	// ErrUpdatePanicked wraps a panic raised by an update mutator.
	ErrUpdatePanicked = errors.New("job update panicked")
)

type entry struct {
	mu      sync.Mutex
	job     models.Job
	version uint64
	deleted bool
}

// Store owns all jobs for their lifetime.
// The store lock covers the map and creation index only. Each job has its own lock.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	order    []string // creation order, oldest first
	capacity int
	slack    int
	bus      *Bus
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity sets the size at which eviction starts.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithSlack sets the extra entries freed per eviction pass.
func WithSlack(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.slack = n
		}
	}
}

// WithBus sets the event bus.
func WithBus(b *Bus) Option {
	return func(s *Store) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:  make(map[string]*entry),
		capacity: DefaultCapacity,
		slack:    DefaultSlack,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = NewBus(DefaultBufferSize)
	}
	return s
}

// Bus returns the store's event bus.
func (s *Store) Bus() *Bus {
	return s.bus
}

// Create inserts a new pending job, evicting old finished jobs when full.
func (s *Store) Create(source models.SourceRef, opts models.StartOptions) models.Job {
	job := models.Job{
		ID:        uuid.New().String(),
		Source:    source,
		Options:   opts,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	evicted, full := s.evictLocked()
	e := &entry{job: job, version: 1}
	s.entries[job.ID] = e
	s.order = append(s.order, job.ID)
	s.mu.Unlock()

	switch {
	case len(evicted) > 0:
		s.logger.Info("evicted finished jobs", "count", len(evicted), "job_ids", evicted, "jobs", s.Len())
	case full:
		s.logger.Warn("job store over capacity with no finished jobs to evict", "jobs", s.Len(), "capacity", s.capacity)
	}

	s.bus.publish(Event{Job: job, Version: 1})
	s.logger.Debug("job created", "job_id", job.ID, "source", source.URL)
	return job.Clone()
}

// evictLocked removes the oldest finished jobs once the store is full.
// Pending and processing jobs are never evicted. Caller holds s.mu.
// full reports whether finished jobs were needed to make room.
func (s *Store) evictLocked() (evicted []string, full bool) {
	size := len(s.entries)
	if size < s.capacity {
		return nil, false
	}
	need := size - s.capacity + s.slack
	if need <= 0 {
		return nil, false
	}

	kept := s.order[:0]
	for _, id := range s.order {
		e := s.entries[id]
		if len(evicted) < need && e != nil {
			e.mu.Lock()
			terminal := e.job.Status.IsTerminal()
			if terminal {
				e.deleted = true
			}
			e.mu.Unlock()
			if terminal {
				delete(s.entries, id)
				evicted = append(evicted, id)
				continue
			}
		}
		kept = append(kept, id)
	}
	s.order = kept
	return evicted, true
}

func (s *Store) entry(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (models.Job, bool) {
	job, _, ok := s.get(id)
	return job, ok
}

func (s *Store) get(id string) (models.Job, uint64, bool) {
	e := s.entry(id)
	if e == nil {
		return models.Job{}, 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return models.Job{}, 0, false
	}
	return e.job.Clone(), e.version, true
}

// List returns up to limit jobs, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) []models.Job {
	s.mu.RLock()
	ids := slices.Clone(s.order)
	s.mu.RUnlock()

	slices.Reverse(ids)
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}

	out := make([]models.Job, 0, limit)
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		if job, ok := s.Get(id); ok {
			out = append(out, job)
		}
	}
	return out
}

// Len returns the number of stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Delete removes a job. Subscribers watching it are closed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
		if i := slices.Index(s.order, id); i >= 0 {
			s.order = slices.Delete(s.order, i, i+1)
		}
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	e.deleted = true
	e.version++
	s.bus.publish(Event{Job: e.job, Version: e.version, Deleted: true})
	e.mu.Unlock()

	s.logger.Debug("job deleted", "job_id", id)
	return true
}

// Update applies mutate to a copy of the job and stores the result atomically.
// If mutate panics the stored job is unchanged. The new snapshot is published.
func (s *Store) Update(id string, mutate func(*models.Job)) (models.Job, error) {
	e := s.entry(id)
	if e == nil {
		return models.Job{}, ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return models.Job{}, ErrJobNotFound
	}
	if e.job.Status.IsTerminal() {
		return e.job.Clone(), ErrJobTerminal
	}

	next := e.job.Clone()
	if err := applyMutator(&next, mutate); err != nil {
		s.logger.Error("job update rejected", "job_id", id, "error", err)
		return e.job.Clone(), err
	}
	next.ID = e.job.ID
	next.CreatedAt = e.job.CreatedAt

	e.job = next
	e.version++
	s.bus.publish(Event{Job: next, Version: e.version})
	return next.Clone(), nil
}

func applyMutator(job *models.Job, mutate func(*models.Job)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUpdatePanicked, r)
		}
	}()
	mutate(job)
	return nil
}
