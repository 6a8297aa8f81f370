// Package dedupe guards engagement processing against replays. Engagement
// ids arrive at-least-once from the field link; the counters must move
// at-most-once per id.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen engagement ids.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if
	// not. Returns true when id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets an id so it can be retried. Used when an engagement
	// was marked seen but its processing failed before committing.
	Unrecord(ctx context.Context, id string)

	// Size reports the number of ids currently tracked.
	Size() int64
}

const defaultMaxSize = 50000

// inMemoryDeduper keeps a bounded set of ids with FIFO eviction. Eviction
// of old ids is acceptable: an engagement replayed after tens of thousands
// of newer ones is indistinguishable from a new fact and the durable
// store's immutable-fact insert still ignores it.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int
}

// NewInMemoryDeduper returns a bounded in-memory guard.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen:    make(map[string]struct{}),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	d.order = append(d.order, id)

	if d.maxSize > 0 && len(d.order) > d.maxSize {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; !ok {
		return
	}
	delete(d.seen, id)
	for i, v := range d.order {
		if v == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
