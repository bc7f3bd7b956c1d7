// Package assembler drains the record queue into size-bounded batches.
//
// Flush idempotency comes from the queue itself: the atomic drain is the
// single point of truth, so two concurrent flushes can never double-count
// or drop a record.
package assembler

import (
	"context"
	"sync"

	"github.com/okian/beacon/internal/domain/model"
	"github.com/okian/beacon/pkg/logger"
	"github.com/okian/beacon/pkg/metrics"
)

// Default assembler configuration constants.
const (
	defaultBatchSize = 30
)

// Queue is the drainable record buffer the assembler feeds from.
type Queue interface {
	DrainUpTo(ctx context.Context, n int) []model.TelemetryRecord
	Len(ctx context.Context) int
}

// Submitter receives assembled batches for background delivery.
type Submitter interface {
	Submit(ctx context.Context, b *model.Batch) error
}

// Assembler turns queued records into batches on threshold or on demand.
type Assembler struct {
	queue     Queue
	submitter Submitter
	batchSize int
	logger    logger.Logger

	// mu guards the in-flight threshold flush job.
	mu       sync.Mutex
	inflight context.CancelFunc
}

// New creates an assembler with configuration options.
func New(queue Queue, submitter Submitter, opts ...Option) *Assembler {
	a := &Assembler{
		queue:     queue,
		submitter: submitter,
		batchSize: defaultBatchSize,
	}

	// Apply all options
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = logger.Get().Named("assembler")
	}

	return a
}

// BatchSize returns the configured flush threshold.
func (a *Assembler) BatchSize() int {
	return a.batchSize
}

// MaybeFlush triggers an asynchronous drain-and-dispatch when the queue has
// reached the batch size. It never blocks the caller and is cheap enough to
// invoke after every enqueue.
func (a *Assembler) MaybeFlush(ctx context.Context) {
	if a.queue.Len(ctx) < a.batchSize {
		return
	}

	a.mu.Lock()
	if a.inflight != nil {
		// A flush job is already draining; it re-checks the threshold
		// before finishing.
		a.mu.Unlock()
		return
	}

	// The flush job outlives the producer call that triggered it.
	flushCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.inflight = cancel
	a.mu.Unlock()

	go a.flushLoop(flushCtx, cancel)
}

// ForceFlush drains the queue completely regardless of threshold, first
// canceling any in-flight threshold flush so the two jobs cannot race on
// overlapping drains. Used on app backgrounding and after crash capture.
func (a *Assembler) ForceFlush(ctx context.Context) {
	a.mu.Lock()
	if a.inflight != nil {
		a.inflight()
		a.inflight = nil
	}
	a.mu.Unlock()

	for {
		records := a.queue.DrainUpTo(ctx, a.batchSize)
		if len(records) == 0 {
			return
		}
		a.dispatch(ctx, records)
	}
}

// flushLoop drains threshold-sized batches until the queue drops below the
// threshold or the job is canceled by a forced flush.
func (a *Assembler) flushLoop(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		a.mu.Lock()
		// Another job may have replaced us after cancellation.
		if ctx.Err() == nil {
			a.inflight = nil
			// Records enqueued between the final threshold check and this
			// point saw a flush still in flight and skipped MaybeFlush, so
			// re-check here and hand off to a fresh job if a full batch is
			// waiting.
			if a.queue.Len(ctx) >= a.batchSize {
				nextCtx, nextCancel := context.WithCancel(context.WithoutCancel(ctx))
				a.inflight = nextCancel
				go a.flushLoop(nextCtx, nextCancel)
			}
		}
		a.mu.Unlock()
		cancel()
	}()

	for a.queue.Len(ctx) >= a.batchSize {
		select {
		case <-ctx.Done():
			return
		default:
		}

		records := a.queue.DrainUpTo(ctx, a.batchSize)
		if len(records) == 0 {
			return
		}
		a.dispatch(ctx, records)
	}
}

// dispatch wraps drained records into a batch and hands it off.
func (a *Assembler) dispatch(ctx context.Context, records []model.TelemetryRecord) {
	b, err := model.NewBatch(records)
	if err != nil {
		// Only possible with zero records, which both callers exclude.
		a.logger.Error(ctx, "dropping invalid batch", logger.Error(err))
		return
	}

	metrics.RecordBatchAssembled(b.Size())

	if err := a.submitter.Submit(ctx, b); err != nil {
		metrics.RecordErrorByComponent("assembler", "submit_failed")
		a.logger.Error(ctx, "failed to submit batch",
			logger.String("batchID", b.BatchID),
			logger.Int("records", b.Size()),
			logger.Error(err),
		)
	}
}
