package jobs

import (
	"sync"

	"github.com/raphaelgruber/designscan/internal/models"
)

// DefaultBufferSize is the per-subscriber event buffer.
const DefaultBufferSize = 64

// Event is one published job state.
type Event struct {
	Job models.Job
	// Version increases with every stored change of the job
	Version uint64
	// Deleted marks the job as removed from the store
	Deleted bool
}

// Bus fans out job events to subscribers without blocking publishers.
// A subscriber that falls behind loses its oldest buffered events.
type Bus struct {
	mu      sync.Mutex
	subs    map[uint64]*busSub
	nextID  uint64
	bufSize int
}

type busSub struct {
	jobID string
	ch    chan Event
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Bus{
		subs:    make(map[uint64]*busSub),
		bufSize: bufSize,
	}
}

// Subscribe registers a subscriber. A non-empty jobID restricts delivery to that job.
// There is no replay: only events published after registration are delivered.
// The returned cancel func closes the channel and is safe to call more than once.
func (b *Bus) Subscribe(jobID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &busSub{jobID: jobID, ch: make(chan Event, b.bufSize)}
	b.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(sub.ch)
		})
	}
}

// publish delivers ev to every matching subscriber. Only the store publishes,
// so every event carries the job's stored version.
func (b *Bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.jobID != "" && sub.jobID != ev.Job.ID {
			continue
		}
		out := ev
		out.Job = ev.Job.Clone()
		select {
		case sub.ch <- out:
			continue
		default:
		}
		// Full: drop the oldest buffered event and retry once.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- out:
		default:
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
