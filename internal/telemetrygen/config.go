package telemetrygen

import (
	"time"

	sdkconfig "github.com/okian/beacon/internal/config"
)

// Config holds configuration for the demo generator.
type Config struct {
	Endpoint  string        // Collector URL batches are POSTed to
	APIKey    string        // API key sent with every batch
	NumEvents int           // Number of records to generate
	Workers   int           // Number of concurrent producers
	BatchSize int           // Flush threshold
	SpoolDir  string        // Durable spool directory
	Timeout   time.Duration // Overall run timeout
	Verbose   bool          // Enable verbose logging

	// SDK, when set, configures the service from the layered BEACON_*
	// configuration instead of the flag-derived fields above.
	SDK *sdkconfig.Config
}

// Stats holds generator statistics.
type Stats struct {
	RecordsGenerated int
	EventsRecorded   int
	MetricsRecorded  int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
