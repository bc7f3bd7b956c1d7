package app

import (
	"time"

	"github.com/okian/beacon/internal/config"
)

// NewFromConfig builds a Service from a loaded configuration, typically the
// result of config.Load. Options given after cfg override what it set.
func NewFromConfig(cfg *config.Config, opts ...Option) *Service {
	base := []Option{
		WithEndpoint(cfg.Endpoint),
		WithAPIKey(cfg.APIKey),
		WithBatchSize(cfg.BatchSize),
		WithMaxRetries(cfg.MaxRetries),
		WithBaseDelay(time.Duration(cfg.BaseDelayMS) * time.Millisecond),
		WithMaxJitter(time.Duration(cfg.MaxJitterMS) * time.Millisecond),
		WithEmergencyTimeout(time.Duration(cfg.EmergencyTimeoutMS) * time.Millisecond),
		WithDispatcherCount(cfg.DispatcherCount),
		WithSpoolDir(cfg.SpoolDir),
	}
	return New(append(base, opts...)...)
}
