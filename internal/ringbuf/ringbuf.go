// Package ringbuf provides the bounded tick window used by the signal engine.
// It is a fixed-capacity circular buffer of model.PriceTick that overwrites
// the oldest entry when full, so the window always holds the most recent N
// ticks in arrival order.
package ringbuf

import (
	"sync"

	"github.com/sigflow/signalengine/internal/model"
)

// Ring is a FIFO-evicting circular buffer of ticks.
//
// Safe for one writer and any number of concurrent readers: Snapshot always
// observes a complete Push, never a half-written slot.
type Ring struct {
	mu   sync.RWMutex
	buf  []model.PriceTick
	pos  int // next write position
	full bool

	evicted uint64
}

// New creates a ring with the given capacity. Minimum capacity is 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]model.PriceTick, capacity)}
}

// Push appends a tick, evicting the oldest one when the ring is full.
func (r *Ring) Push(t model.PriceTick) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full {
		r.evicted++
	}
	r.buf[r.pos] = t
	r.pos = (r.pos + 1) % len(r.buf)
	if r.pos == 0 && !r.full {
		r.full = true
	}
}

// Snapshot returns a copy of the buffered ticks, oldest first.
func (r *Ring) Snapshot() []model.PriceTick {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.len()
	out := make([]model.PriceTick, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[r.index(i)]
	}
	return out
}

// LatestClose returns the close of the newest tick. ok is false when empty.
func (r *Ring) LatestClose() (price float64, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.len() == 0 {
		return 0, false
	}
	last := (r.pos - 1 + len(r.buf)) % len(r.buf)
	return r.buf[last].Close, true
}

// Len returns the number of ticks currently held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.len()
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Evicted returns how many ticks have been overwritten since creation.
func (r *Ring) Evicted() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.evicted
}

func (r *Ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.pos
}

// index converts a logical index (0 = oldest) to a physical buffer index.
func (r *Ring) index(logical int) int {
	if r.full {
		return (r.pos + logical) % len(r.buf)
	}
	return logical
}
