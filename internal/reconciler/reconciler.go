// Package reconciler replays spooled batches when the app starts or
// returns to the foreground.
//
// Each batch is attempted independently so one failing batch never blocks
// the rest, and passes are single-flight: a pass that starts while another
// is running returns immediately.
package reconciler

import (
	"context"
	"sync/atomic"

	"github.com/okian/beacon/internal/domain/model"
	"github.com/okian/beacon/pkg/logger"
	"github.com/okian/beacon/pkg/metrics"
)

// Spool is the durable batch store the reconciler drains.
type Spool interface {
	ReadAll(ctx context.Context) []*model.Batch
	Delete(ctx context.Context, batchID string) error
}

// Sender delivers one batch and classifies the outcome.
type Sender interface {
	Send(ctx context.Context, b *model.Batch) model.DeliveryOutcome
}

// Ledger tracks batch ids already delivered during this run.
type Ledger interface {
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
}

// Reconciler moves batches from the spool back through delivery.
type Reconciler struct {
	spool   Spool
	sender  Sender
	ledger  Ledger
	running atomic.Bool
	logger  logger.Logger
}

// New creates a reconciler with configuration options.
func New(spool Spool, sender Sender, ledger Ledger, opts ...Option) *Reconciler {
	r := &Reconciler{
		spool:  spool,
		sender: sender,
		ledger: ledger,
	}

	// Apply all options
	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = logger.Get().Named("reconciler")
	}

	return r
}

// Reconcile attempts delivery of every spooled batch and returns the number
// delivered. A pass overlapping another returns 0 immediately.
func (r *Reconciler) Reconcile(ctx context.Context) int {
	if !r.running.CompareAndSwap(false, true) {
		return 0
	}
	defer r.running.Store(false)

	metrics.RecordReconcilePass()

	batches := r.spool.ReadAll(ctx)
	if len(batches) == 0 {
		return 0
	}

	delivered := 0
	for _, b := range batches {
		if r.reconcileOne(ctx, b) {
			delivered++
		}
	}

	r.logger.Info(ctx, "reconciliation pass complete",
		logger.Int("spooled", len(batches)),
		logger.Int("delivered", delivered),
	)
	return delivered
}

// reconcileOne handles a single spooled batch. Failures leave the entry in
// place for the next pass.
func (r *Reconciler) reconcileOne(ctx context.Context, b *model.Batch) bool {
	if r.ledger.SeenAndRecord(ctx, b.BatchID) {
		// Already confirmed by another path this run; just clean up.
		r.deleteEntry(ctx, b.BatchID)
		return false
	}

	outcome := r.sender.Send(ctx, b)
	switch {
	case outcome.IsSuccess():
		r.deleteEntry(ctx, b.BatchID)
		metrics.RecordReconcileDelivered()
		return true
	case outcome.IsTerminal():
		// Replaying the same payload forever is pointless. Drop the entry
		// and leave a diagnostic trail.
		metrics.RecordErrorByComponent("reconciler", "terminal_failure")
		r.logger.Error(ctx, "spooled batch permanently rejected, discarding",
			logger.String("batchID", b.BatchID),
			logger.Int("records", b.Size()),
			logger.String("reason", outcome.Reason),
		)
		r.deleteEntry(ctx, b.BatchID)
		return false
	default:
		// Not delivered after all; let a later pass record it again.
		r.ledger.Unrecord(ctx, b.BatchID)
		r.logger.Info(ctx, "spooled batch still undeliverable",
			logger.String("batchID", b.BatchID),
			logger.String("reason", outcome.Reason),
		)
		return false
	}
}

// deleteEntry removes a spool entry, logging rather than propagating
// failures: a leftover entry only means a possible duplicate send later.
func (r *Reconciler) deleteEntry(ctx context.Context, batchID string) {
	if err := r.spool.Delete(ctx, batchID); err != nil {
		metrics.RecordErrorByComponent("reconciler", "spool_delete")
		r.logger.Warn(ctx, "failed to delete spool entry",
			logger.String("batchID", batchID),
			logger.Error(err),
		)
	}
}
