package matching

import (
	"context"

	"github.com/google/uuid"
	"github.com/storelink/backend/internal/domain/customer"
	"github.com/storelink/backend/internal/domain/matching"
	"github.com/storelink/backend/internal/domain/order"
	"github.com/storelink/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const maxSearchResults = 50

// Service is the application facade over the matching engine: read models
// for the review UI, the manual mapping flow, and run triggers for the batch
// reconciler.
type Service struct {
	orders     order.Repository
	customers  customer.Repository
	resolver   *matching.Resolver
	ledger     *Ledger
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewService creates the matching application service
func NewService(
	orders order.Repository,
	customers customer.Repository,
	resolver *matching.Resolver,
	ledger *Ledger,
	reconciler *Reconciler,
	logger *zap.Logger,
) *Service {
	return &Service{
		orders:     orders,
		customers:  customers,
		resolver:   resolver,
		ledger:     ledger,
		reconciler: reconciler,
		logger:     logger,
	}
}

// GetStats returns mapping coverage figures. The rate is computed here from
// the live counts; it is never persisted.
func (s *Service) GetStats(ctx context.Context) (*StatsResponse, error) {
	total, err := s.orders.Count(ctx)
	if err != nil {
		return nil, err
	}
	mapped, err := s.orders.CountMapped(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := s.customers.Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := &StatsResponse{
		TotalOrders:    total,
		MappedOrders:   mapped,
		UnmappedOrders: total - mapped,
		TotalCustomers: customers,
	}
	if total > 0 {
		stats.MappingRate = float64(mapped) / float64(total)
	}
	return stats, nil
}

// ListUnmapped pages through unmapped orders for the review queue
func (s *Service) ListUnmapped(ctx context.Context, filter shared.Filter) (*shared.Paginated[OrderResponse], error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	orders, err := s.orders.ListUnmapped(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.orders.CountUnmapped(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, *toOrderResponse(&orders[i], nil))
	}
	result := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &result, nil
}

// GetOrder returns one order with its mapping state and, when unmapped, the
// live candidate list for the review UI.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var candidates []matching.Candidate
	if !o.IsMapped() {
		res, err := s.resolver.Resolve(ctx, o)
		if err != nil {
			return nil, err
		}
		candidates = res.Candidates
	}
	return toOrderResponse(o, candidates), nil
}

// SearchCustomers ranks customers for the manual-mapping picker
func (s *Service) SearchCustomers(ctx context.Context, query string, limit int) ([]CustomerResponse, error) {
	if query == "" {
		return nil, shared.NewDomainError("INVALID_QUERY", "Search query cannot be empty")
	}
	if limit < 1 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	// A query that normalizes as a phone number is searched in canonical
	// form, so local-format input still hits the canonical phone index.
	if canonical, err := matching.NormalizePhone(query, s.resolver.Region()); err == nil {
		query = canonical
	}

	found, err := s.customers.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]CustomerResponse, 0, len(found))
	for i := range found {
		results = append(results, toCustomerResponse(&found[i]))
	}
	return results, nil
}

// ManualMap commits an operator-chosen mapping. Manual always wins: an
// existing mapping is reversed and replaced, with both customers' aggregates
// kept consistent by the ledger.
func (s *Service) ManualMap(ctx context.Context, req ManualMapRequest, operator string) (*MappingAppliedResponse, error) {
	applied, err := s.ledger.Commit(ctx, req.OrderID, req.CustomerID, order.MappingMethodManual, 1.0, operator)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order manually mapped",
		zap.String("order_no", applied.OrderNo),
		zap.String("customer_id", applied.CustomerID.String()),
		zap.String("operator", operator))
	return toMappingAppliedResponse(applied), nil
}

// Unmap removes an order's mapping by explicit administrator action
func (s *Service) Unmap(ctx context.Context, orderID uuid.UUID, operator string) error {
	return s.ledger.Release(ctx, orderID, operator)
}

// RunAutoMap sweeps the unmapped stream once, resuming from the persisted
// cursor.
func (s *Service) RunAutoMap(ctx context.Context) (*matching.RunReport, error) {
	return s.reconciler.Run(ctx, false)
}

// RunBatchSync rescans the whole unmapped stream from the beginning.
// Idempotent: already-mapped orders are benign skips.
func (s *Service) RunBatchSync(ctx context.Context) (*matching.RunReport, error) {
	return s.reconciler.Run(ctx, true)
}
