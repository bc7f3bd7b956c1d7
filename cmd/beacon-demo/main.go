package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/beacon/internal/config"
	"github.com/okian/beacon/internal/telemetrygen"
	"github.com/okian/beacon/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumEvents = 1000
	defaultBatchSize = 30
	defaultTimeout   = 2 * time.Minute
)

func main() {
	var (
		endpoint  = flag.String("endpoint", "http://localhost:9080/v1/batches", "Collector URL")
		apiKey    = flag.String("api-key", "", "API key sent with every batch")
		numEvents = flag.Int("records", defaultNumEvents, "Number of records to generate")
		workers   = flag.Int("workers", runtime.NumCPU(), "Number of concurrent producers")
		batchSize = flag.Int("batch-size", defaultBatchSize, "Flush threshold")
		spoolDir  = flag.String("spool-dir", "", "Spool directory (default: OS temp)")
		timeout   = flag.Duration("timeout", defaultTimeout, "Overall run timeout")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	genCfg := &telemetrygen.Config{
		Endpoint:  *endpoint,
		APIKey:    *apiKey,
		NumEvents: *numEvents,
		Workers:   *workers,
		BatchSize: *batchSize,
		SpoolDir:  *spoolDir,
		Timeout:   *timeout,
		Verbose:   *verbose,
	}

	// When BEACON_* settings are present, the layered env/YAML configuration
	// drives the SDK instead of the flag values.
	if os.Getenv("BEACON_ENDPOINT") != "" || os.Getenv("BEACON_CONFIG") != "" {
		sdkCfg, err := config.Load(ctx)
		if err != nil {
			os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
			return
		}
		if !*verbose {
			_ = logger.SetLevelString(sdkCfg.LogLevel)
		}
		genCfg.SDK = sdkCfg
		genCfg.Endpoint = sdkCfg.Endpoint
		genCfg.BatchSize = sdkCfg.BatchSize
	}

	if err := telemetrygen.Run(ctx, genCfg); err != nil {
		os.Stderr.WriteString("demo run failed: " + err.Error() + "\n")
		return
	}
}
