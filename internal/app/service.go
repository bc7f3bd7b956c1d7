// Package app provides the SDK handle that wires the telemetry pipeline
// together and exposes the producer API.
//
// There is no process-wide singleton: New returns an explicit handle the
// host app injects wherever telemetry is recorded.
package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/beacon/internal/adapters/delivery"
	eventqueue "github.com/okian/beacon/internal/adapters/mq/queue"
	dispatch "github.com/okian/beacon/internal/adapters/mq/worker"
	"github.com/okian/beacon/internal/adapters/spool"
	"github.com/okian/beacon/internal/crash"
	"github.com/okian/beacon/internal/domain/assembler"
	"github.com/okian/beacon/internal/domain/ledger"
	"github.com/okian/beacon/internal/domain/model"
	"github.com/okian/beacon/internal/reconciler"
	"github.com/okian/beacon/pkg/logger"
	"github.com/okian/beacon/pkg/metrics"
)

// Screen-timing metric constants.
const (
	screenTimeMetric = "screen_time_ms"
	screenAttrKey    = "screen"
)

// Service is the SDK handle composing the telemetry pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	queue      eventqueue.Queue
	assembler  *assembler.Assembler
	pool       *dispatch.Pool
	client     delivery.Client
	batchSpool spool.Spool
	delivered  ledger.Ledger
	reconciler *reconciler.Reconciler
	crashChain *crash.Chain

	// Configuration
	endpoint         string
	apiKey           string
	batchSize        int
	maxRetries       int
	baseDelay        time.Duration
	maxJitter        time.Duration
	emergencyTimeout time.Duration
	dispatcherCount  int
	spoolDir         string

	// Screen timing
	screenMu sync.Mutex
	screens  map[string]time.Time

	// State
	started   bool
	runCancel context.CancelFunc

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		batchSize:        30,
		maxRetries:       3,
		baseDelay:        500 * time.Millisecond,
		maxJitter:        time.Second,
		emergencyTimeout: 2 * time.Second,
		dispatcherCount:  2,
		spoolDir:         filepath.Join(os.TempDir(), "beacon-spool"),
		screens:          make(map[string]time.Time),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the pipeline components, installs the crash
// chain, and kicks off an initial reconciliation pass in the background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting telemetry service...")

	if s.batchSpool == nil {
		fs, err := spool.NewFileSpool(s.spoolDir)
		if err != nil {
			return err
		}
		s.batchSpool = fs
	}

	if s.client == nil {
		c, err := delivery.NewHTTPClient(s.endpoint,
			delivery.WithAPIKey(s.apiKey),
			delivery.WithMaxRetries(s.maxRetries),
			delivery.WithBaseDelay(s.baseDelay),
			delivery.WithMaxJitter(s.maxJitter),
		)
		if err != nil {
			return err
		}
		s.client = c
	}

	s.queue = eventqueue.NewInMemoryQueue()
	s.delivered = ledger.New()
	s.pool = dispatch.NewPool(s.dispatcherCount, s.client, s.batchSpool)
	s.assembler = assembler.New(s.queue, s.pool,
		assembler.WithBatchSize(s.batchSize),
	)
	s.reconciler = reconciler.New(s.batchSpool, s.client, s.delivered)
	s.crashChain = crash.NewChain(s.batchSpool, s.client,
		crash.WithEmergencyTimeout(s.emergencyTimeout),
		crash.WithLedger(s.delivered),
		crash.WithQueue(s.queue),
	)

	// Dispatchers outlive the Start caller's context.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runCancel = cancel
	s.pool.Start(runCtx)

	// Replay anything a previous run left behind.
	go s.reconciler.Reconcile(runCtx)

	s.started = true
	s.logger.Info(ctx, "telemetry service started",
		logger.Int("batchSize", s.batchSize),
		logger.Int("dispatchers", s.dispatcherCount),
		logger.String("spoolDir", s.spoolDir),
	)

	return nil
}

// Stop flushes remaining records and shuts the pipeline down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping telemetry service...")

	// No new records, then drain what is queued.
	_ = s.queue.Close()
	s.assembler.ForceFlush(ctx)

	// Let dispatchers finish buffered batches before cutting their context.
	_ = s.pool.Shutdown(ctx)
	if s.runCancel != nil {
		s.runCancel()
	}

	s.started = false
	s.logger.Info(ctx, "telemetry service stopped")
}

// RecordEvent records a named event with optional attributes.
func (s *Service) RecordEvent(ctx context.Context, name string, attrs model.Attributes) error {
	record, err := model.NewEvent(name, attrs)
	if err != nil {
		return err
	}
	s.enqueue(ctx, record)
	return nil
}

// RecordMetric records a named numeric observation with optional attributes.
func (s *Service) RecordMetric(ctx context.Context, name string, value float64, attrs model.Attributes) error {
	record, err := model.NewMetric(name, value, attrs)
	if err != nil {
		return err
	}
	s.enqueue(ctx, record)
	return nil
}

// enqueue appends the record and lets the assembler decide whether the
// threshold has been reached. Both steps are non-blocking for the caller.
func (s *Service) enqueue(ctx context.Context, record model.TelemetryRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return
	}
	if !s.queue.Enqueue(ctx, record) {
		s.logger.Warn(ctx, "record dropped, queue closed",
			logger.String("name", record.Name),
		)
		return
	}
	s.assembler.MaybeFlush(ctx)
}

// OnForeground triggers a reconciliation pass in the background.
func (s *Service) OnForeground(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return
	}
	go s.reconciler.Reconcile(context.WithoutCancel(ctx))
}

// OnBackground forces a flush of everything queued, off the caller's thread.
func (s *Service) OnBackground(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return
	}
	go s.assembler.ForceFlush(context.WithoutCancel(ctx))
}

// OnScreenEnter marks the start of a screen visit.
func (s *Service) OnScreenEnter(ctx context.Context, name string) {
	if name == "" {
		return
	}
	s.screenMu.Lock()
	s.screens[name] = time.Now()
	s.screenMu.Unlock()
}

// OnScreenExit records the screen's visible time as a metric.
func (s *Service) OnScreenExit(ctx context.Context, name string) {
	s.screenMu.Lock()
	entered, ok := s.screens[name]
	if ok {
		delete(s.screens, name)
	}
	s.screenMu.Unlock()

	if !ok {
		return
	}

	elapsed := float64(time.Since(entered).Milliseconds())
	_ = s.RecordMetric(ctx, screenTimeMetric, elapsed,
		model.Attributes{{Key: screenAttrKey, Value: name}})
}

// CapturePanic routes a recovered panic through the crash chain. It runs
// synchronously on the calling goroutine; the host re-panics afterwards if
// it wants the default crash behavior.
func (s *Service) CapturePanic(ctx context.Context, recovered any) {
	s.mu.RLock()
	chain := s.crashChain
	s.mu.RUnlock()

	if chain == nil {
		return
	}
	chain.Handle(ctx, crash.FromPanic(recovered))
}

// CrashChain exposes the handler chain so the host can append previously
// installed handlers.
func (s *Service) CrashChain() *crash.Chain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crashChain
}

// Reconcile runs a reconciliation pass synchronously and returns the number
// of spooled batches delivered.
func (s *Service) Reconcile(ctx context.Context) int {
	s.mu.RLock()
	r := s.reconciler
	s.mu.RUnlock()

	if r == nil {
		return 0
	}
	return r.Reconcile(ctx)
}

// ForceFlush drains the queue synchronously. Exposed for hosts that need a
// flush barrier, e.g. right before process exit.
func (s *Service) ForceFlush(ctx context.Context) {
	s.mu.RLock()
	a := s.assembler
	s.mu.RUnlock()

	if a == nil {
		return
	}
	a.ForceFlush(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"batchSize":   s.batchSize,
		"dispatchers": s.dispatcherCount,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		spooled := s.batchSpool.Size(ctx)

		stats["queueLength"] = queueLen
		stats["spooledBatches"] = spooled

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateSpoolSize(spooled)
	}

	return stats
}
