// Package worker defines dispatcher contracts for background batch delivery.
package worker

import (
	"github.com/okian/beacon/pkg/logger"
)

// Option applies a configuration option to the BatchDispatcher.
type Option func(*BatchDispatcher)

// WithName sets the dispatcher name for identification and logging.
func WithName(name string) Option {
	return func(d *BatchDispatcher) {
		if name != "" {
			d.name = name
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(d *BatchDispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}
