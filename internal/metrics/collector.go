// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpAnalyze   = "analyze"
	OpResolve   = "resolve"
	OpDiscover  = "discover"
	OpEmbedding = "embedding"
	OpIndex     = "index"
	OpSearch    = "search"
	OpJob       = "job"
)

// Outcome counters kept next to timings.
const (
	CounterJobsStarted   = "jobs_started"
	CounterJobsCompleted = "jobs_completed"
	CounterJobsFailed    = "jobs_failed"
	CounterFramesSkipped = "frames_skipped"
	CounterFramesIndexed = "frames_indexed"
)

type opStats struct {
	count   int64
	errors  int64
	total   time.Duration
	minTime time.Duration
	maxTime time.Duration
}

// OperationSnapshot provides computed stats for one operation.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Errors      int64   `json:"errors"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                      `json:"uptime_seconds"`
	Operations    map[string]OperationSnapshot `json:"operations"`
	Counters      map[string]int64             `json:"counters"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe and safe on a nil receiver.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*opStats
	counters  map[string]int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*opStats),
		counters:  make(map[string]int64),
	}
}

// getOrCreate returns existing stats or creates new ones. Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *opStats {
	m, ok := c.ops[op]
	if !ok {
		m = &opStats{minTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records one successful operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.record(op, duration, false)
}

// RecordError records one failed operation including its duration.
func (c *Collector) RecordError(op string, duration time.Duration) {
	c.record(op, duration, true)
}

func (c *Collector) record(op string, duration time.Duration, failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.count++
	if failed {
		m.errors++
	}
	m.total += duration
	if duration < m.minTime {
		m.minTime = duration
	}
	if duration > m.maxTime {
		m.maxTime = duration
	}
}

// Add increments a named counter by n.
func (c *Collector) Add(counter string, n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[counter] += n
}

func snapshotOp(m *opStats) OperationSnapshot {
	return OperationSnapshot{
		Count:       m.count,
		Errors:      m.errors,
		TotalTimeMs: m.total.Milliseconds(),
		AvgTimeMs:   float64(m.total.Milliseconds()) / float64(m.count),
		MinTimeMs:   m.minTime.Milliseconds(),
		MaxTimeMs:   m.maxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time copy of all metrics.
func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		Operations: map[string]OperationSnapshot{},
		Counters:   map[string]int64{},
	}
	if c == nil {
		return snap
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	snap.UptimeSeconds = time.Since(c.startTime).Seconds()
	for op, m := range c.ops {
		if m.count > 0 {
			snap.Operations[op] = snapshotOp(m)
		}
	}
	for k, v := range c.counters {
		snap.Counters[k] = v
	}
	return snap
}
