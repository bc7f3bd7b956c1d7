// Package assembler drains the record queue into size-bounded batches.
package assembler

import "github.com/okian/beacon/pkg/logger"

// Option applies a configuration option to the Assembler.
type Option func(*Assembler)

// WithBatchSize sets the flush threshold and maximum records per batch.
func WithBatchSize(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithLogger sets a custom logger for the assembler.
func WithLogger(l logger.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}
