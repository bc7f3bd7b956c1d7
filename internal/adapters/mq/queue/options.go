// Package queue defines the contract for buffering pending telemetry records.
package queue

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithInitialCapacity sets the initial capacity of the backing slice.
func WithInitialCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.initialCapacity = capacity
		}
	}
}
