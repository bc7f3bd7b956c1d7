// Package crash captures a final telemetry record before process death.
package crash

import (
	"time"

	"github.com/okian/beacon/pkg/logger"
)

// Option applies a configuration option to the Chain.
type Option func(*Chain)

// WithEmergencyTimeout bounds the best-effort delivery attempt.
func WithEmergencyTimeout(d time.Duration) Option {
	return func(c *Chain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLedger sets the delivered-batch ledger consulted after a successful
// emergency send.
func WithLedger(l Ledger) Option {
	return func(c *Chain) {
		c.ledger = l
	}
}

// WithQueue lets capture drain pending records into the spool before the
// process dies.
func WithQueue(q Queue) Option {
	return func(c *Chain) {
		c.queue = q
	}
}

// WithLogger sets a custom logger for the chain.
func WithLogger(l logger.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}
