// Package reconciler replays spooled batches on start and foreground.
package reconciler

import "github.com/okian/beacon/pkg/logger"

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}
