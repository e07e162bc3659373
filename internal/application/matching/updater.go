package matching

import (
	"context"

	"github.com/google/uuid"
	"github.com/storelink/backend/internal/domain/customer"
	"github.com/storelink/backend/internal/domain/order"
	"go.uber.org/zap"
)

// AggregateUpdater adjusts a customer's denormalized order aggregates when a
// mapping transition touches them. Each mapped order contributes to exactly
// one customer's aggregates; the ledger calls Apply once per affected side of
// a transition, never directly from handlers.
type AggregateUpdater struct {
	customers customer.Repository
	logger    *zap.Logger
}

// NewAggregateUpdater creates an aggregate updater
func NewAggregateUpdater(customers customer.Repository, logger *zap.Logger) *AggregateUpdater {
	return &AggregateUpdater{customers: customers, logger: logger}
}

// Apply shifts customerID's aggregates by one order in the given direction.
// direction +1 credits the order (totalOrders+1, totalSpent+amount,
// lastOrderDate advanced); -1 reverses it and re-derives lastOrderDate from
// the remaining mapped orders, since a reversal cannot roll the date back
// arithmetically.
func (u *AggregateUpdater) Apply(ctx context.Context, customerID uuid.UUID, o *order.Order, direction int) error {
	if direction >= 0 {
		return u.customers.ApplyOrderAggregate(ctx, customerID, 1, o.TotalAmount, o.PlacedAt)
	}

	if err := u.customers.ApplyOrderAggregate(ctx, customerID, -1, o.TotalAmount, o.PlacedAt); err != nil {
		return err
	}
	if err := u.customers.RecomputeLastOrderDate(ctx, customerID); err != nil {
		u.logger.Warn("failed to recompute last order date after reversal",
			zap.String("customer_id", customerID.String()),
			zap.Error(err))
		return err
	}
	return nil
}
