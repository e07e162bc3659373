package customer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines persistence operations for customers.
//
// ApplyOrderAggregate and the recompute methods are the only write paths the
// matching engine uses; they must be atomic at the store level so concurrent
// mappings against the same customer commute.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	// FindByCanonicalPhone returns every customer sharing the canonical
	// phone. Duplicate accounts are possible and the caller must treat a
	// multi-element result as ambiguous.
	FindByCanonicalPhone(ctx context.Context, phone string) ([]Customer, error)
	// Search ranks candidates for the manual-mapping UI: exact canonical
	// phone first, then case-insensitive substring on name/email, ties
	// broken by descending TotalOrders.
	Search(ctx context.Context, query string, limit int) ([]Customer, error)
	Save(ctx context.Context, c *Customer) error
	Count(ctx context.Context) (int64, error)

	// ApplyOrderAggregate atomically shifts the aggregate block by delta
	// orders and amount. For delta > 0, lastOrderDate advances to placedAt
	// if later than the current value; for delta < 0 it is left untouched
	// (callers follow up with RecomputeLastOrderDate).
	ApplyOrderAggregate(ctx context.Context, customerID uuid.UUID, delta int, amount decimal.Decimal, placedAt time.Time) error
	// RecomputeLastOrderDate derives lastOrderDate from the currently
	// mapped orders of the customer.
	RecomputeLastOrderDate(ctx context.Context, customerID uuid.UUID) error
	// RecomputeAggregates rebuilds the whole aggregate block from the
	// mapped-order set. Idempotent; used by the repair pass.
	RecomputeAggregates(ctx context.Context, customerID uuid.UUID) error
}
