// Package worker defines dispatcher contracts for background batch delivery.
//
// Assembled batches flow through a dispatch channel consumed by a small
// pool of workers. Delivery and spool I/O happen here, on the SDK's
// background pool, never on a producer's thread.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/beacon/internal/domain/model"
	"github.com/okian/beacon/pkg/logger"
	"github.com/okian/beacon/pkg/metrics"
)

// Default dispatcher configuration constants.
const (
	defaultWorkerCount   = 2
	defaultChannelBuffer = 64
	poolShutdownTimeout  = 30 * time.Second
)

// Sender delivers one batch and classifies the outcome.
type Sender interface {
	Send(ctx context.Context, b *model.Batch) model.DeliveryOutcome
}

// Store persists batches that could not be delivered.
type Store interface {
	Persist(ctx context.Context, b *model.Batch) error
}

// Dispatcher processes assembled batches until shut down.
type Dispatcher interface {
	// Run starts the dispatch loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the dispatcher.
	Shutdown(ctx context.Context) error
}

// BatchDispatcher implements Dispatcher for a single worker.
type BatchDispatcher struct {
	batches <-chan *model.Batch
	sender  Sender
	store   Store
	name    string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewBatchDispatcher creates a new dispatcher with configuration options.
func NewBatchDispatcher(batches <-chan *model.Batch, sender Sender, store Store, opts ...Option) *BatchDispatcher {
	d := &BatchDispatcher{
		batches:  batches,
		sender:   sender,
		store:    store,
		name:     "dispatcher", // default name
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("dispatcher"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(d)
	}

	if d.name != "dispatcher" {
		d.logger = d.logger.Named(d.name)
	}

	return d
}

// Run starts the dispatch loop.
func (d *BatchDispatcher) Run(ctx context.Context) {
	defer func() {
		close(d.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case b, ok := <-d.batches:
			if !ok {
				// Channel closed, dispatcher should stop
				return
			}
			if err := d.processBatch(ctx, b); err != nil {
				d.logger.Error(ctx, "error processing batch", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the dispatcher.
func (d *BatchDispatcher) Shutdown(ctx context.Context) error {
	close(d.shutdown)

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processBatch delivers one batch and spools it on retryable failure.
func (d *BatchDispatcher) processBatch(ctx context.Context, b *model.Batch) error {
	outcome := d.sender.Send(ctx, b)
	switch {
	case outcome.IsSuccess():
		return nil
	case outcome.IsTerminal():
		// Resending the same payload cannot succeed; record for operators
		// rather than spooling it forever.
		metrics.RecordErrorByComponent("dispatcher", "terminal_failure")
		d.logger.Error(ctx, "batch permanently rejected",
			logger.String("batchID", b.BatchID),
			logger.Int("records", b.Size()),
			logger.String("reason", outcome.Reason),
		)
		return nil
	default:
		if err := d.store.Persist(ctx, b); err != nil {
			metrics.RecordErrorByComponent("dispatcher", "spool_error")
			return fmt.Errorf("spool batch %s after %s: %w", b.BatchID, outcome, err)
		}
		d.logger.Info(ctx, "batch spooled for later delivery",
			logger.String("batchID", b.BatchID),
			logger.String("reason", outcome.Reason),
		)
		return nil
	}
}

// Pool manages multiple dispatchers sharing one dispatch channel.
type Pool struct {
	dispatchers []*BatchDispatcher
	batches     chan *model.Batch
	sender      Sender
	store       Store

	// Shutdown control. The mutex orders Submit against the channel close
	// so a late Submit can never hit a closed channel.
	mu      sync.Mutex
	stopped bool

	// Logging
	logger logger.Logger
}

// NewPool creates a new dispatcher pool.
func NewPool(workerCount int, sender Sender, store Store) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		dispatchers: make([]*BatchDispatcher, workerCount),
		batches:     make(chan *model.Batch, defaultChannelBuffer),
		sender:      sender,
		store:       store,
		logger:      logger.Get().Named("dispatcher-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.dispatchers[i] = NewBatchDispatcher(
			pool.batches,
			sender,
			store,
			WithName(fmt.Sprintf("dispatcher-%d", i)),
		)
	}

	metrics.UpdateDispatcherActiveCount(workerCount)

	return pool
}

// Start starts all dispatchers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, d := range p.dispatchers {
		go d.Run(ctx)
	}
}

// Submit hands a batch to the pool. It blocks only if the dispatch buffer
// is full, and gives up when ctx is done or the pool has stopped.
func (p *Pool) Submit(ctx context.Context, b *model.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.batches <- b:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("submit canceled: %w", ctx.Err())
	}
}

// Shutdown gracefully shuts down the entire pool. The dispatch channel is
// closed so dispatchers drain buffered batches before exiting.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.batches)
	p.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, d := range p.dispatchers {
		select {
		case <-d.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "dispatcher shutdown timed out", logger.Int("dispatcher_id", i))
		}
	}

	metrics.UpdateDispatcherActiveCount(0)
	return nil
}
