// Package dedupe tracks already-processed evaluation event IDs so a
// redelivered event updates nothing twice.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen evaluation event IDs for at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it
	// if not. Returns true when id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets an ID so the event can be retried. Used when an
	// event was recorded but failed to enqueue for detection.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps seen IDs in a map with a FIFO ring for bounded
// eviction. With a non-positive capacity the set grows without bound.
type inMemoryDeduper struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	ring  []string
	next  int
	limit int
}

// NewInMemory creates a deduper with configuration options.
func NewInMemory(opts ...Option) Deduper {
	d := &inMemoryDeduper{limit: defaultCapacity}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]struct{})
	if d.limit > 0 {
		d.ring = make([]string, d.limit)
	}

	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.limit > 0 {
		if evicted := d.ring[d.next]; evicted != "" {
			delete(d.seen, evicted)
		}
		d.ring[d.next] = id
		d.next = (d.next + 1) % d.limit
	}
	d.seen[id] = struct{}{}

	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// The ring slot keeps its entry; evicting a forgotten ID later is a
	// harmless no-op.
	delete(d.seen, id)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return int64(len(d.seen))
}
