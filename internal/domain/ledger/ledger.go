// Package ledger tracks batch ids confirmed delivered during this run.
//
// Delivery is at-least-once overall, but within a single run two paths can
// see the same spooled batch (the crash path's best-effort send and a
// reconciliation pass). The ledger keeps them from double-sending it.
package ledger

import (
	"context"
	"sync"
	"sync/atomic"
)

// Ledger records delivered batch ids.
type Ledger interface {
	// SeenAndRecord atomically checks if id was recorded and records it if
	// not. Returns true if id was already recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an id, allowing it to be retried. Used when a batch
	// was optimistically recorded but its delivery then failed.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryLedger implements Ledger with a bounded map. When full, the
// oldest recorded ids are evicted in insertion order; an evicted id may be
// re-sent, which at-least-once delivery permits.
type inMemoryLedger struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int
	size    atomic.Int64
}

// New creates an in-memory ledger with configuration options.
func New(opts ...Option) Ledger {
	l := &inMemoryLedger{
		maxSize: 10000, // default max size
	}

	// Apply all options
	for _, opt := range opts {
		opt(l)
	}

	l.seen = make(map[string]struct{})

	return l
}

// SeenAndRecord atomically checks and records id.
func (l *inMemoryLedger) SeenAndRecord(ctx context.Context, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.seen[id]; exists {
		return true
	}

	if l.maxSize > 0 && len(l.seen) >= l.maxSize {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.seen, oldest)
		l.size.Add(-1)
	}

	l.seen[id] = struct{}{}
	l.order = append(l.order, id)
	l.size.Add(1)
	return false
}

// Unrecord removes an id from the ledger.
func (l *inMemoryLedger) Unrecord(ctx context.Context, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.seen[id]; !exists {
		return
	}
	delete(l.seen, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.size.Add(-1)
}

// Size returns the current number of recorded ids.
func (l *inMemoryLedger) Size() int64 {
	return l.size.Load()
}
