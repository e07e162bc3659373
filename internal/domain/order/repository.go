package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storelink/backend/internal/domain/shared"
)

// StreamPosition is the resumable cursor for streaming unmapped orders.
// Orders are streamed in (placed_at, id) order; the position names the last
// fully-processed order.
type StreamPosition struct {
	PlacedAt time.Time
	OrderID  uuid.UUID
}

// Repository defines persistence operations for orders.
//
// ClaimMapping is the optimistic write primitive behind the mapping ledger:
// it must update the mapping columns only when the order is still unmapped,
// in a single conditional statement, and report a lost race as
// shared.ErrMappingConflict.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	Save(ctx context.Context, o *Order) error
	// SaveWithLock persists with an optimistic version check and returns
	// shared.ErrConcurrencyConflict when the row moved underneath us.
	SaveWithLock(ctx context.Context, o *Order) error

	// ClaimMapping conditionally writes m onto an unmapped order and raises
	// the pending-aggregate marker. Returns shared.ErrMappingConflict if
	// another writer mapped the order first, shared.ErrNotFound if the
	// order does not exist.
	ClaimMapping(ctx context.Context, orderID uuid.UUID, m Mapping) error
	// ClearPendingAggregate lowers the two-phase marker.
	ClearPendingAggregate(ctx context.Context, orderID uuid.UUID) error

	// ListUnmappedAfter streams unmapped orders in (placed_at, id) order,
	// strictly after pos (nil = from the beginning), up to limit rows.
	ListUnmappedAfter(ctx context.Context, pos *StreamPosition, limit int) ([]Order, error)
	// ListPendingAggregate returns orders whose pending-aggregate marker is
	// still raised (repair-pass input).
	ListPendingAggregate(ctx context.Context, limit int) ([]Order, error)
	ListUnmapped(ctx context.Context, filter shared.Filter) ([]Order, error)

	Count(ctx context.Context) (int64, error)
	CountMapped(ctx context.Context) (int64, error)
	CountUnmapped(ctx context.Context) (int64, error)
	CountMappedTo(ctx context.Context, customerID uuid.UUID) (int64, error)
}
