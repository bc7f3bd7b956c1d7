package app

import (
	"time"

	"github.com/okian/beacon/internal/adapters/delivery"
	"github.com/okian/beacon/internal/adapters/spool"
	"github.com/okian/beacon/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEndpoint sets the collector URL.
func WithEndpoint(endpoint string) Option {
	return func(s *Service) {
		s.endpoint = endpoint
	}
}

// WithAPIKey sets the API key sent with every batch.
func WithAPIKey(key string) Option {
	return func(s *Service) {
		s.apiKey = key
	}
}

// WithBatchSize sets the flush threshold and maximum records per batch.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMaxRetries caps network attempts per delivery.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithBaseDelay sets the backoff base delay.
func WithBaseDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.baseDelay = d
		}
	}
}

// WithMaxJitter caps the backoff jitter.
func WithMaxJitter(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.maxJitter = d
		}
	}
}

// WithEmergencyTimeout bounds the crash path's best-effort delivery.
func WithEmergencyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.emergencyTimeout = d
		}
	}
}

// WithDispatcherCount sets the number of background delivery workers.
func WithDispatcherCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dispatcherCount = n
		}
	}
}

// WithSpoolDir sets the durable spool directory.
func WithSpoolDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.spoolDir = dir
		}
	}
}

// WithDeliveryClient injects a delivery client, replacing the HTTP default.
func WithDeliveryClient(c delivery.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// WithSpool injects a spool, replacing the file-backed default.
func WithSpool(sp spool.Spool) Option {
	return func(s *Service) {
		if sp != nil {
			s.batchSpool = sp
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
