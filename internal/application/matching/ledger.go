package matching

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storelink/backend/internal/domain/customer"
	"github.com/storelink/backend/internal/domain/order"
	"github.com/storelink/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// MappingApplied describes one committed mapping transition
type MappingApplied struct {
	OrderID    uuid.UUID
	OrderNo    string
	CustomerID uuid.UUID
	Method     order.MappingMethod
	Confidence float64
	MappedAt   time.Time
	// Previous holds the mapping that was replaced, nil for a first-time map.
	Previous *order.Mapping
}

// Ledger is the single write path for order-customer mappings. Every mapping
// transition goes through Commit or Release, which enforce the at-most-one
// rule at the store level and keep the customer aggregates in step through
// the pending-aggregate marker:
//
//  1. write the mapping with the marker raised
//  2. adjust the affected customer aggregates
//  3. lower the marker
//
// A crash between the phases leaves the marker raised; Repair later rebuilds
// the affected aggregates from the mapped-order truth.
type Ledger struct {
	orders    order.Repository
	customers customer.Repository
	updater   *AggregateUpdater
	logger    *zap.Logger
}

// NewLedger creates a mapping ledger
func NewLedger(orders order.Repository, customers customer.Repository, updater *AggregateUpdater, logger *zap.Logger) *Ledger {
	return &Ledger{
		orders:    orders,
		customers: customers,
		updater:   updater,
		logger:    logger,
	}
}

// Commit maps orderID to customerID. Auto and batch commits claim the order
// with a conditional store write and lose gracefully: a concurrently-mapped
// order surfaces as shared.ErrMappingConflict without touching anything.
// Manual commits always win, reversing the previous customer's aggregates
// before crediting the new one.
func (l *Ledger) Commit(ctx context.Context, orderID, customerID uuid.UUID, method order.MappingMethod, confidence float64, mappedBy string) (*MappingApplied, error) {
	if _, err := l.customers.FindByID(ctx, customerID); err != nil {
		return nil, err
	}

	o, err := l.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if method == order.MappingMethodManual {
		return l.commitManual(ctx, o, customerID, mappedBy)
	}
	return l.commitClaim(ctx, o, customerID, method, confidence, mappedBy)
}

// commitClaim is the auto/batch path: one conditional write that only lands
// on a still-unmapped row.
func (l *Ledger) commitClaim(ctx context.Context, o *order.Order, customerID uuid.UUID, method order.MappingMethod, confidence float64, mappedBy string) (*MappingApplied, error) {
	m := order.Mapping{
		CustomerID: customerID,
		Method:     method,
		Confidence: confidence,
		MappedAt:   time.Now(),
		MappedBy:   mappedBy,
	}
	if err := l.orders.ClaimMapping(ctx, o.ID, m); err != nil {
		return nil, err
	}

	if err := l.updater.Apply(ctx, customerID, o, 1); err != nil {
		// Mapping is committed, aggregates are not: leave the marker raised
		// for the repair pass instead of unwinding the claim.
		l.logger.Warn("aggregate update deferred to repair pass",
			zap.String("order_id", o.ID.String()),
			zap.String("customer_id", customerID.String()),
			zap.Error(err))
		return l.applied(o, m, nil), nil
	}
	if err := l.orders.ClearPendingAggregate(ctx, o.ID); err != nil {
		l.logger.Warn("failed to clear pending-aggregate marker",
			zap.String("order_id", o.ID.String()),
			zap.Error(err))
	}

	return l.applied(o, m, nil), nil
}

// commitManual overrides whatever mapping exists. The previous customer's
// aggregates are reversed first so the order is never counted twice.
func (l *Ledger) commitManual(ctx context.Context, o *order.Order, customerID uuid.UUID, mappedBy string) (*MappingApplied, error) {
	var previous *order.Mapping
	if o.Mapping != nil {
		prev := *o.Mapping
		previous = &prev
	}
	if previous != nil && previous.CustomerID == customerID {
		// Re-mapping to the same customer only refreshes provenance; the
		// aggregates already count this order.
		if err := o.ApplyMapping(customerID, order.MappingMethodManual, 1.0, mappedBy); err != nil {
			return nil, err
		}
		o.MarkAggregateApplied()
		if err := l.orders.SaveWithLock(ctx, o); err != nil {
			return nil, err
		}
		return l.applied(o, *o.Mapping, previous), nil
	}

	if err := o.ApplyMapping(customerID, order.MappingMethodManual, 1.0, mappedBy); err != nil {
		return nil, err
	}
	if err := l.orders.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}

	if previous != nil {
		if err := l.updater.Apply(ctx, previous.CustomerID, o, -1); err != nil {
			l.logger.Warn("aggregate reversal deferred to repair pass",
				zap.String("order_id", o.ID.String()),
				zap.String("customer_id", previous.CustomerID.String()),
				zap.Error(err))
			return l.applied(o, *o.Mapping, previous), nil
		}
	}
	if err := l.updater.Apply(ctx, customerID, o, 1); err != nil {
		l.logger.Warn("aggregate update deferred to repair pass",
			zap.String("order_id", o.ID.String()),
			zap.String("customer_id", customerID.String()),
			zap.Error(err))
		return l.applied(o, *o.Mapping, previous), nil
	}
	if err := l.orders.ClearPendingAggregate(ctx, o.ID); err != nil {
		l.logger.Warn("failed to clear pending-aggregate marker",
			zap.String("order_id", o.ID.String()),
			zap.Error(err))
	}

	return l.applied(o, *o.Mapping, previous), nil
}

// Release removes an order's mapping (explicit administrator action) and
// reverses the customer's aggregates.
func (l *Ledger) Release(ctx context.Context, orderID uuid.UUID, releasedBy string) error {
	o, err := l.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !o.IsMapped() {
		return shared.NewDomainError("NOT_MAPPED", "Order has no active mapping")
	}
	prevCustomer := o.Mapping.CustomerID

	if err := o.ClearMapping(); err != nil {
		return err
	}
	if err := l.orders.SaveWithLock(ctx, o); err != nil {
		return err
	}

	if err := l.updater.Apply(ctx, prevCustomer, o, -1); err != nil {
		l.logger.Warn("aggregate reversal deferred to repair pass",
			zap.String("order_id", o.ID.String()),
			zap.String("customer_id", prevCustomer.String()),
			zap.Error(err))
		return nil
	}
	if err := l.orders.ClearPendingAggregate(ctx, o.ID); err != nil {
		l.logger.Warn("failed to clear pending-aggregate marker",
			zap.String("order_id", o.ID.String()),
			zap.Error(err))
	}

	l.logger.Info("mapping released",
		zap.String("order_id", o.ID.String()),
		zap.String("customer_id", prevCustomer.String()),
		zap.String("released_by", releasedBy))
	return nil
}

// Repair walks orders whose pending-aggregate marker is still raised and
// rebuilds the affected customers' aggregates from the mapped-order truth.
// Recomputation is idempotent, so repairing an order whose aggregates did
// land is harmless. Returns the number of orders repaired.
func (l *Ledger) Repair(ctx context.Context, limit int) (int, error) {
	pending, err := l.orders.ListPendingAggregate(ctx, limit)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for i := range pending {
		o := &pending[i]
		if err := ctx.Err(); err != nil {
			return repaired, err
		}

		if o.Mapping != nil {
			if err := l.customers.RecomputeAggregates(ctx, o.Mapping.CustomerID); err != nil {
				l.logger.Warn("repair recompute failed",
					zap.String("order_id", o.ID.String()),
					zap.String("customer_id", o.Mapping.CustomerID.String()),
					zap.Error(err))
				continue
			}
		}
		if o.PrevCustomerID != nil {
			if err := l.customers.RecomputeAggregates(ctx, *o.PrevCustomerID); err != nil {
				l.logger.Warn("repair recompute failed",
					zap.String("order_id", o.ID.String()),
					zap.String("customer_id", o.PrevCustomerID.String()),
					zap.Error(err))
				continue
			}
		}

		if err := l.orders.ClearPendingAggregate(ctx, o.ID); err != nil {
			l.logger.Warn("failed to clear pending-aggregate marker",
				zap.String("order_id", o.ID.String()),
				zap.Error(err))
			continue
		}
		repaired++
	}

	if repaired > 0 {
		l.logger.Info("repaired pending aggregates", zap.Int("count", repaired))
	}
	return repaired, nil
}

func (l *Ledger) applied(o *order.Order, m order.Mapping, previous *order.Mapping) *MappingApplied {
	return &MappingApplied{
		OrderID:    o.ID,
		OrderNo:    o.OrderNo,
		CustomerID: m.CustomerID,
		Method:     m.Method,
		Confidence: m.Confidence,
		MappedAt:   m.MappedAt,
		Previous:   previous,
	}
}
