package matching

import (
	"context"
	"errors"
	"time"

	"github.com/storelink/backend/internal/domain/matching"
	"github.com/storelink/backend/internal/domain/order"
	"github.com/storelink/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrRunInProgress is returned when another reconciliation run holds the lock
var ErrRunInProgress = shared.NewDomainError("RUN_IN_PROGRESS", "A reconciliation run is already in progress")

// RunStateStore persists reconciliation run state across process restarts:
// the mutual-exclusion lock and the resume cursor.
type RunStateStore interface {
	// AcquireLock takes the run lock if free. Returns false when another
	// holder is active. The TTL bounds a crashed holder's exclusivity.
	AcquireLock(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context) error

	LoadCursor(ctx context.Context) (string, error)
	SaveCursor(ctx context.Context, token string) error
	ClearCursor(ctx context.Context) error
}

// ReconcilerConfig bounds a reconciliation run
type ReconcilerConfig struct {
	BatchSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	LockTTL      time.Duration
	RepairLimit  int
}

// DefaultReconcilerConfig returns the stock run bounds
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		BatchSize:    200,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
		LockTTL:      10 * time.Minute,
		RepairLimit:  1000,
	}
}

// Reconciler drives batch reconciliation: it streams unmapped orders in
// (placed_at, id) order and auto-maps each one. Runs are exclusive (one at a
// time via the run lock), resumable (the cursor names the last fully-processed
// order), and idempotent (already-mapped orders are benign skips, so replaying
// a range cannot double-map or double-count).
type Reconciler struct {
	orders     order.Repository
	autoMapper *AutoMapper
	ledger     *Ledger
	state      RunStateStore
	cfg        ReconcilerConfig
	logger     *zap.Logger
}

// NewReconciler creates a batch reconciler
func NewReconciler(orders order.Repository, autoMapper *AutoMapper, ledger *Ledger, state RunStateStore, cfg ReconcilerConfig, logger *zap.Logger) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultReconcilerConfig().BatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultReconcilerConfig().LockTTL
	}
	if cfg.RepairLimit <= 0 {
		cfg.RepairLimit = DefaultReconcilerConfig().RepairLimit
	}
	return &Reconciler{
		orders:     orders,
		autoMapper: autoMapper,
		ledger:     ledger,
		state:      state,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes one reconciliation sweep. fromStart discards the persisted
// cursor and rescans the whole unmapped stream; otherwise the run resumes
// after the last fully-processed order. Cancellation via ctx finishes the
// in-flight order, persists the cursor, and returns a partial report. A run
// that drains the stream clears the cursor, so the next run revisits orders
// that were skipped as ambiguous or unmatched.
func (r *Reconciler) Run(ctx context.Context, fromStart bool) (*matching.RunReport, error) {
	acquired, err := r.state.AcquireLock(ctx, r.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := r.state.ReleaseLock(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("failed to release run lock", zap.Error(err))
		}
	}()

	// Settle any half-applied transitions from a previous crash before new
	// writes pile on top of them.
	if _, err := r.ledger.Repair(ctx, r.cfg.RepairLimit); err != nil {
		return nil, err
	}

	pos, err := r.startPosition(ctx, fromStart)
	if err != nil {
		return nil, err
	}

	report := matching.NewRunReport()
	r.logger.Info("reconciliation run started",
		zap.Bool("from_start", fromStart),
		zap.Int("batch_size", r.cfg.BatchSize))

	for {
		batch, err := r.orders.ListUnmappedAfter(ctx, pos, r.cfg.BatchSize)
		if err != nil {
			return r.finish(report, pos), err
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			o := &batch[i]

			select {
			case <-ctx.Done():
				report.Cancelled = true
				return r.finish(report, pos), nil
			default:
			}

			r.processOrder(ctx, o, report)

			pos = &order.StreamPosition{PlacedAt: o.PlacedAt, OrderID: o.ID}
			if err := r.state.SaveCursor(ctx, EncodeCursor(*pos)); err != nil {
				// Losing the cursor breaks resumability, which is worse than
				// an unfinished sweep. Stop here.
				return r.finish(report, pos), err
			}
		}

		if len(batch) < r.cfg.BatchSize {
			break
		}
	}

	// The stream is drained. Leaving the cursor at end-of-stream would hide
	// skipped orders from every later resume, so drop it.
	if err := r.state.ClearCursor(ctx); err != nil {
		return r.finish(report, pos), err
	}

	final := r.finish(report, nil)
	r.logger.Info("reconciliation run finished",
		zap.Int("scanned", final.Scanned),
		zap.Int("mapped", final.SuccessCount),
		zap.Int("ambiguous", final.SkippedAmbiguous),
		zap.Int("no_match", final.SkippedNoMatch),
		zap.Int("conflicts", final.SkippedConflict),
		zap.Int("errors", len(final.Errors)))
	return final, nil
}

// processOrder auto-maps one order with bounded retries on transient store
// failures. A terminal failure is recorded in the report and never aborts the
// run.
func (r *Reconciler) processOrder(ctx context.Context, o *order.Order, report *matching.RunReport) {
	var outcome Outcome
	var err error

	for attempt := 0; ; attempt++ {
		outcome, err = r.autoMapper.AutoMap(ctx, o, order.MappingMethodBatch, "reconciler")
		if err == nil || !r.retryable(err) || attempt >= r.cfg.MaxRetries {
			break
		}
		r.logger.Warn("transient failure, retrying order",
			zap.String("order_no", o.OrderNo),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if !sleepCtx(ctx, r.cfg.RetryBackoff*time.Duration(attempt+1)) {
			break
		}
	}

	switch {
	case err != nil:
		report.RecordError(o.ID, err.Error())
	case outcome.Status == OutcomeMapped:
		report.RecordSuccess()
	default:
		report.RecordSkip(outcome.SkipReason)
	}
}

func (r *Reconciler) retryable(err error) bool {
	return errors.Is(err, shared.ErrStoreUnavailable)
}

func (r *Reconciler) startPosition(ctx context.Context, fromStart bool) (*order.StreamPosition, error) {
	if fromStart {
		if err := r.state.ClearCursor(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	token, err := r.state.LoadCursor(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}
	pos, err := DecodeCursor(token)
	if err != nil {
		r.logger.Warn("discarding malformed resume cursor", zap.String("cursor", token))
		return nil, nil
	}
	return &pos, nil
}

func (r *Reconciler) finish(report *matching.RunReport, pos *order.StreamPosition) *matching.RunReport {
	if pos != nil {
		report.Cursor = EncodeCursor(*pos)
	}
	return report.Finish()
}

// sleepCtx waits for d or until ctx is done; returns false on cancellation
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
