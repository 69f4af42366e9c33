// Package dedupe tracks idempotency keys so retried requests are applied once.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen request keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a request that failed after recording can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int
}

// inMemoryDeduper keeps at most maxSize keys and evicts the oldest first.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64 // key -> insertion sequence
	order   []string          // ring of keys in insertion order, bounded mode only
	seqs    []uint64
	head    int
	count   int
	seq     uint64
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: 50000}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	if d.maxSize > 0 {
		d.order = make([]string, d.maxSize)
		d.seqs = make([]uint64, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seq++
	d.seen[id] = d.seq

	if d.maxSize <= 0 {
		return false
	}
	if d.count == d.maxSize {
		d.evictOldest()
	}
	tail := (d.head + d.count) % d.maxSize
	d.order[tail] = id
	d.seqs[tail] = d.seq
	d.count++
	return false
}

// evictOldest frees the oldest ring slot, forgetting its key unless the key
// was unrecorded or recorded again since. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	id, seq := d.order[d.head], d.seqs[d.head]
	d.order[d.head] = ""
	d.head = (d.head + 1) % d.maxSize
	d.count--
	if cur, ok := d.seen[id]; ok && cur == seq {
		delete(d.seen, id)
	}
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
