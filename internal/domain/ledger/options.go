// Package ledger tracks batch ids confirmed delivered during this run.
package ledger

// Option applies a configuration option to the in-memory ledger.
type Option func(*inMemoryLedger)

// WithMaxSize bounds the number of ids kept in memory.
// A size of 0 or below means unbounded.
func WithMaxSize(size int) Option {
	return func(l *inMemoryLedger) {
		l.maxSize = size
	}
}
