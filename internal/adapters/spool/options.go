package spool

import "github.com/okian/beacon/pkg/logger"

// Option applies a configuration option to the FileSpool.
type Option func(*FileSpool)

// WithSync enables or disables fsync on persisted entries. Disabling it
// speeds tests up; production keeps it on.
func WithSync(enabled bool) Option {
	return func(s *FileSpool) {
		s.sync = enabled
	}
}

// WithLogger sets a custom logger for the spool.
func WithLogger(l logger.Logger) Option {
	return func(s *FileSpool) {
		if l != nil {
			s.logger = l
		}
	}
}
