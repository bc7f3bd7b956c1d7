// Package crash captures a final telemetry record before process death.
//
// The chain runs synchronously on the crashing goroutine because the
// process is about to terminate; everything else in the SDK stays off the
// caller's thread. Handlers installed before the SDK keep running: the
// chain always delegates to them, whatever happens inside capture.
package crash

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/okian/beacon/internal/domain/model"
	"github.com/okian/beacon/pkg/logger"
	"github.com/okian/beacon/pkg/metrics"
)

// Default crash path configuration constants.
const (
	defaultEmergencyTimeout = 2 * time.Second
	crashEventName          = "app_crash"

	// queueDrainChunk bounds each batch spooled from the pending queue
	// while the process is dying.
	queueDrainChunk = 100
)

// Crash describes an uncaught failure about to kill the process.
type Crash struct {
	Type    string
	Message string
	Stack   string
}

// FromPanic builds a Crash from a recovered panic value, capturing the
// current goroutine's stack.
func FromPanic(recovered any) Crash {
	return Crash{
		Type:    fmt.Sprintf("%T", recovered),
		Message: fmt.Sprint(recovered),
		Stack:   string(debug.Stack()),
	}
}

// Handler is one link in the crash handling chain.
type Handler func(ctx context.Context, c Crash)

// Spool persists the crash batch before the process dies.
type Spool interface {
	Persist(ctx context.Context, b *model.Batch) error
	Delete(ctx context.Context, batchID string) error
}

// Sender performs the best-effort delivery after persisting.
type Sender interface {
	Send(ctx context.Context, b *model.Batch) model.DeliveryOutcome
}

// Ledger records a delivered crash batch so a concurrent reconciliation
// pass does not resend it.
type Ledger interface {
	SeenAndRecord(ctx context.Context, id string) bool
}

// Queue exposes the pending records that would otherwise die with the
// process; capture drains them into the spool.
type Queue interface {
	DrainUpTo(ctx context.Context, n int) []model.TelemetryRecord
}

// Chain is the ordered crash handler list. The SDK's capture handler runs
// first; previously installed handlers follow, always.
type Chain struct {
	spool   Spool
	sender  Sender
	ledger  Ledger
	queue   Queue
	timeout time.Duration
	next    []Handler
	logger  logger.Logger
}

// NewChain creates a crash chain with configuration options.
func NewChain(spool Spool, sender Sender, opts ...Option) *Chain {
	c := &Chain{
		spool:   spool,
		sender:  sender,
		timeout: defaultEmergencyTimeout,
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.Get().Named("crash")
	}

	return c
}

// Append adds a previously installed handler to be invoked after capture.
func (c *Chain) Append(h Handler) {
	if h != nil {
		c.next = append(c.next, h)
	}
}

// Handle runs the full chain for one crash. Capture failures are swallowed
// and logged; the wrapped handlers run regardless, so the host app's own
// crash behavior is never masked.
func (c *Chain) Handle(ctx context.Context, crash Crash) {
	defer c.delegate(ctx, crash)
	c.capture(ctx, crash)
}

// delegate invokes the wrapped handlers in order, shielding each from the
// others' panics.
func (c *Chain) delegate(ctx context.Context, crash Crash) {
	if r := recover(); r != nil {
		c.logger.Error(ctx, "crash capture panicked", logger.Any("panic", r))
	}
	for _, h := range c.next {
		c.invoke(ctx, crash, h)
	}
}

// invoke runs one wrapped handler, containing its panic.
func (c *Chain) invoke(ctx context.Context, crash Crash, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(ctx, "wrapped crash handler panicked", logger.Any("panic", r))
		}
	}()
	h(ctx, crash)
}

// capture synchronously persists the crash record and then spends at most
// the emergency timeout on one delivery attempt.
func (c *Chain) capture(ctx context.Context, crash Crash) {
	metrics.RecordCrashCapture()

	record, err := model.NewEvent(crashEventName, model.Attributes{
		{Key: "exception_type", Value: crash.Type},
		{Key: "exception_message", Value: crash.Message},
		{Key: "stack_trace", Value: crash.Stack},
	})
	if err != nil {
		c.logger.Error(ctx, "failed to build crash record", logger.Error(err))
		return
	}

	b, err := model.NewBatch([]model.TelemetryRecord{record})
	if err != nil {
		c.logger.Error(ctx, "failed to build crash batch", logger.Error(err))
		return
	}

	// Persistence must complete before the process is allowed to die; no
	// asynchronous dispatch on this path.
	persistErr := c.spool.Persist(ctx, b)
	if persistErr != nil {
		metrics.RecordErrorByComponent("crash", "spool_error")
		c.logger.Error(ctx, "failed to persist crash batch", logger.Error(persistErr))
	}

	// Records already queued at crash time would die with the process, so
	// they go to disk too. Spool only, never the network: the emergency
	// send budget belongs to the crash batch.
	c.spoolQueued(ctx)

	if persistErr != nil {
		return
	}

	// Best effort only: on timeout or failure the entry stays spooled for
	// the next launch's reconciliation pass.
	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	outcome := c.sender.Send(sendCtx, b)
	if outcome.IsSuccess() {
		if c.ledger != nil {
			c.ledger.SeenAndRecord(ctx, b.BatchID)
		}
		if err := c.spool.Delete(ctx, b.BatchID); err != nil {
			c.logger.Warn(ctx, "failed to delete delivered crash batch", logger.Error(err))
		}
		return
	}

	c.logger.Info(ctx, "crash batch left spooled",
		logger.String("batchID", b.BatchID),
		logger.String("outcome", outcome.String()),
	)
}

// spoolQueued drains pending records into the spool so the next launch's
// reconciliation pass can deliver them.
func (c *Chain) spoolQueued(ctx context.Context) {
	if c.queue == nil {
		return
	}
	for {
		records := c.queue.DrainUpTo(ctx, queueDrainChunk)
		if len(records) == 0 {
			return
		}
		b, err := model.NewBatch(records)
		if err != nil {
			c.logger.Error(ctx, "failed to build batch from pending records", logger.Error(err))
			return
		}
		if err := c.spool.Persist(ctx, b); err != nil {
			metrics.RecordErrorByComponent("crash", "spool_error")
			c.logger.Error(ctx, "failed to persist pending records", logger.Error(err))
			return
		}
	}
}
