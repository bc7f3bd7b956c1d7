// Package queue defines the contract for buffering pending telemetry records.
//
// The queue is the single point of truth for batch assembly: whatever a
// drain physically removes is what gets sent, and nothing else.
package queue

import (
	"context"
	"sync"

	"github.com/okian/beacon/internal/domain/model"
	"github.com/okian/beacon/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultInitialCapacity = 256
)

// Record is the payload type flowing through the queue.
// Using the model.TelemetryRecord type for type safety.
type Record = model.TelemetryRecord

// Queue provides non-blocking enqueue and atomic batched drain semantics.
type Queue interface {
	// Enqueue appends a record in FIFO order.
	// Returns false only if the queue has been closed.
	Enqueue(ctx context.Context, r Record) bool

	// DrainUpTo atomically removes and returns up to n records in FIFO
	// order. n <= 0 drains everything. No record is returned twice.
	DrainUpTo(ctx context.Context, n int) []Record

	// Len returns the current number of queued records.
	Len(ctx context.Context) int

	// Close stops new enqueues. Already-queued records remain drainable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a mutex-guarded slice. It is
// unbounded: enqueue never blocks and never drops, limited only by memory.
type InMemoryQueue struct {
	mu              sync.Mutex
	records         []Record
	initialCapacity int
	closed          bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		initialCapacity: defaultInitialCapacity,
	}

	// Apply all options
	for _, opt := range opts {
		opt(q)
	}

	q.records = make([]Record, 0, q.initialCapacity)

	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue appends a record in FIFO order.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	q.records = append(q.records, r)
	metrics.RecordEnqueued()
	metrics.UpdateQueueSize(len(q.records))
	return true
}

// DrainUpTo atomically removes and returns up to n records in FIFO order.
func (q *InMemoryQueue) DrainUpTo(ctx context.Context, n int) []Record {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.records) == 0 {
		return nil
	}

	count := len(q.records)
	if n > 0 && n < count {
		count = n
	}

	drained := make([]Record, count)
	copy(drained, q.records[:count])

	// Shift the remainder to the front so the backing array does not pin
	// drained records.
	remaining := copy(q.records, q.records[count:])
	for i := remaining; i < remaining+count && i < len(q.records); i++ {
		q.records[i] = Record{}
	}
	q.records = q.records[:remaining]

	metrics.UpdateQueueSize(remaining)
	return drained
}

// Len returns the current number of queued records.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Close stops new enqueues. Queued records remain drainable so a final
// flush can still empty the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
