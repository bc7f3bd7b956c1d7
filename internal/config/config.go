// Package config defines SDK configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"os"
	"path/filepath"
)

// Config contains SDK configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Endpoint is the collector URL batches are POSTed to.
	Endpoint string `koanf:"endpoint"`

	// APIKey authenticates the SDK against the collector.
	APIKey string `koanf:"api_key"`

	// BatchSize is the queue length that triggers a flush and the maximum
	// records per batch.
	BatchSize int `koanf:"batch_size"`

	// MaxRetries caps total network attempts per delivery.
	MaxRetries int `koanf:"max_retries"`

	// BaseDelayMS is the exponential backoff base delay.
	BaseDelayMS int `koanf:"base_delay_ms"`

	// MaxJitterMS caps the random jitter added to each backoff delay.
	MaxJitterMS int `koanf:"max_jitter_ms"`

	// EmergencyTimeoutMS bounds the crash path's best-effort delivery.
	EmergencyTimeoutMS int `koanf:"emergency_timeout_ms"`

	// DispatcherCount sets the number of background delivery workers.
	DispatcherCount int `koanf:"dispatcher_count"`

	// SpoolDir is where undelivered batches are persisted.
	SpoolDir string `koanf:"spool_dir"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		BatchSize:          30,
		MaxRetries:         3,
		BaseDelayMS:        500,
		MaxJitterMS:        1000,
		EmergencyTimeoutMS: 2000,
		DispatcherCount:    2,
		SpoolDir:           defaultSpoolDir(),
	}
}

// defaultSpoolDir places the spool under the OS temp directory.
func defaultSpoolDir() string {
	return filepath.Join(os.TempDir(), "beacon-spool")
}
