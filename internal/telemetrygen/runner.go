package telemetrygen

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/beacon/internal/app"
	"github.com/okian/beacon/internal/domain/model"
	"github.com/okian/beacon/pkg/logger"
)

// Run wires up an SDK handle and pushes synthetic telemetry through it.
func Run(ctx context.Context, cfg *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting beacon demo generator",
		logger.String("endpoint", cfg.Endpoint),
		logger.Int("records", cfg.NumEvents),
		logger.Int("workers", cfg.Workers),
		logger.Int("batchSize", cfg.BatchSize),
	)

	var svc *app.Service
	if cfg.SDK != nil {
		svc = app.NewFromConfig(cfg.SDK)
	} else {
		svc = app.New(
			app.WithEndpoint(cfg.Endpoint),
			app.WithAPIKey(cfg.APIKey),
			app.WithBatchSize(cfg.BatchSize),
			app.WithSpoolDir(cfg.SpoolDir),
		)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start SDK: %w", err)
	}
	defer svc.Stop()

	// Simulate a foreground transition so spooled leftovers replay first.
	svc.OnForeground(ctx)

	var events, metricsRecorded atomic.Int64
	var wg sync.WaitGroup

	workerCount := cfg.Workers
	if workerCount < 1 {
		workerCount = 1
	}
	perWorker := cfg.NumEvents / workerCount

	for w := 0; w < workerCount; w++ {
		count := perWorker
		if w == workerCount-1 {
			count = cfg.NumEvents - perWorker*(workerCount-1)
		}
		wg.Add(1)
		go func(count int) {
			defer wg.Done()
			for i := 0; i < count; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}

				r := generateRecord()
				attrs := model.Attributes{{Key: "screen", Value: r.screen}}
				if r.isMetric {
					if err := svc.RecordMetric(ctx, r.name, r.value, attrs); err == nil {
						metricsRecorded.Add(1)
					}
				} else {
					if err := svc.RecordEvent(ctx, r.name, attrs); err == nil {
						events.Add(1)
					}
				}
			}
		}(count)
	}

	wg.Wait()

	// Simulate backgrounding, then a hard flush barrier before exit.
	svc.OnBackground(ctx)
	svc.ForceFlush(ctx)

	stats.EventsRecorded = int(events.Load())
	stats.MetricsRecorded = int(metricsRecorded.Load())
	stats.RecordsGenerated = stats.EventsRecorded + stats.MetricsRecorded
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	logger.Get().Info(ctx, "demo generator finished",
		logger.Int("events", stats.EventsRecorded),
		logger.Int("metrics", stats.MetricsRecorded),
		logger.String("duration", stats.Duration.String()),
		logger.Any("stats", svc.GetStats()),
	)
	return nil
}
