package matching

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storelink/backend/internal/domain/customer"
	"github.com/storelink/backend/internal/domain/order"
	"github.com/storelink/backend/internal/domain/shared"
)

// fakeOrderRepo is an in-memory order.Repository with error injection knobs
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order

	findErr  error
	listErr  error
	claimErr error
	// transientClaims makes the next N ClaimMapping calls fail with
	// shared.ErrStoreUnavailable before succeeding.
	transientClaims int
	claimCalls      int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*order.Order)}
}

func (f *fakeOrderRepo) put(o *order.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.ID] = &cp
}

func (f *fakeOrderRepo) get(id uuid.UUID) *order.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.orders[id]
	return &cp
}

func (f *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) Save(_ context.Context, o *order.Order) error {
	f.put(o)
	return nil
}

func (f *fakeOrderRepo) SaveWithLock(_ context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.orders[o.ID]
	if !ok {
		return shared.ErrNotFound
	}
	// The caller already incremented the version; the stored row must be
	// exactly one behind.
	if existing.Version != o.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) ClaimMapping(_ context.Context, orderID uuid.UUID, m order.Mapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimCalls++
	if f.transientClaims > 0 {
		f.transientClaims--
		return shared.ErrStoreUnavailable
	}
	if f.claimErr != nil {
		return f.claimErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return shared.ErrNotFound
	}
	if o.Mapping != nil {
		return shared.ErrMappingConflict
	}
	mc := m
	o.Mapping = &mc
	o.PendingAggregate = true
	o.Version++
	return nil
}

func (f *fakeOrderRepo) ClearPendingAggregate(_ context.Context, orderID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return shared.ErrNotFound
	}
	o.PendingAggregate = false
	o.PrevCustomerID = nil
	return nil
}

func (f *fakeOrderRepo) ListUnmappedAfter(_ context.Context, pos *order.StreamPosition, limit int) ([]order.Order, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.Order
	for _, o := range f.orders {
		if o.Mapping != nil {
			continue
		}
		if pos != nil && !streamAfter(o, pos) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].PlacedAt.Before(out[j].PlacedAt)
		}
		return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func streamAfter(o *order.Order, pos *order.StreamPosition) bool {
	if o.PlacedAt.After(pos.PlacedAt) {
		return true
	}
	if o.PlacedAt.Equal(pos.PlacedAt) {
		return strings.Compare(o.ID.String(), pos.OrderID.String()) > 0
	}
	return false
}

func (f *fakeOrderRepo) ListPendingAggregate(_ context.Context, limit int) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.Order
	for _, o := range f.orders {
		if o.PendingAggregate {
			out = append(out, *o)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListUnmapped(ctx context.Context, filter shared.Filter) ([]order.Order, error) {
	all, err := f.ListUnmappedAfter(ctx, nil, int(^uint(0)>>1))
	if err != nil {
		return nil, err
	}
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(all) {
		return nil, nil
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (f *fakeOrderRepo) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.orders)), nil
}

func (f *fakeOrderRepo) CountMapped(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, o := range f.orders {
		if o.Mapping != nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeOrderRepo) CountUnmapped(_ context.Context) (int64, error) {
	total, _ := f.Count(context.Background())
	mapped, _ := f.CountMapped(context.Background())
	return total - mapped, nil
}

func (f *fakeOrderRepo) CountMappedTo(_ context.Context, customerID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, o := range f.orders {
		if o.Mapping != nil && o.Mapping.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

// fakeCustomerRepo is an in-memory customer.Repository. Aggregate writes
// mutate stored customers so tests can assert exactly-once accounting;
// recompute calls are recorded for repair-pass assertions.
type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*customer.Customer

	applyErr          error
	recomputedLast    []uuid.UUID
	recomputedFull    []uuid.UUID
	searchResults     []customer.Customer
	searchErr         error
	lastSearchQuery   string
	findByPhoneErr    error
	applyCallCount    int
	applyFailuresLeft int
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[uuid.UUID]*customer.Customer)}
}

func (f *fakeCustomerRepo) put(c *customer.Customer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.customers[c.ID] = &cp
}

func (f *fakeCustomerRepo) get(id uuid.UUID) *customer.Customer {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.customers[id]
	return &cp
}

func (f *fakeCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*customer.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCustomerRepo) FindByCanonicalPhone(_ context.Context, phone string) ([]customer.Customer, error) {
	if f.findByPhoneErr != nil {
		return nil, f.findByPhoneErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []customer.Customer
	for _, c := range f.customers {
		if c.PhoneCanonical == phone {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
	})
	return out, nil
}

func (f *fakeCustomerRepo) Search(_ context.Context, query string, _ int) ([]customer.Customer, error) {
	f.mu.Lock()
	f.lastSearchQuery = query
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults, nil
}

func (f *fakeCustomerRepo) Save(_ context.Context, c *customer.Customer) error {
	f.put(c)
	return nil
}

func (f *fakeCustomerRepo) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.customers)), nil
}

func (f *fakeCustomerRepo) ApplyOrderAggregate(_ context.Context, customerID uuid.UUID, delta int, amount decimal.Decimal, placedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCallCount++
	if f.applyFailuresLeft > 0 {
		f.applyFailuresLeft--
		return shared.ErrStoreUnavailable
	}
	if f.applyErr != nil {
		return f.applyErr
	}
	c, ok := f.customers[customerID]
	if !ok {
		return shared.ErrNotFound
	}
	if delta > 0 {
		c.ApplyOrder(amount, placedAt)
	} else {
		c.ReverseOrder(amount)
	}
	return nil
}

func (f *fakeCustomerRepo) RecomputeLastOrderDate(_ context.Context, customerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recomputedLast = append(f.recomputedLast, customerID)
	return nil
}

func (f *fakeCustomerRepo) RecomputeAggregates(_ context.Context, customerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recomputedFull = append(f.recomputedFull, customerID)
	return nil
}

// fakeRunState is an in-memory RunStateStore
type fakeRunState struct {
	mu         sync.Mutex
	locked     bool
	cursor     string
	lockErr    error
	cursorErr  error
	savedCount int
}

func (f *fakeRunState) AcquireLock(_ context.Context, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return false, f.lockErr
	}
	if f.locked {
		return false, nil
	}
	f.locked = true
	return true, nil
}

func (f *fakeRunState) ReleaseLock(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = false
	return nil
}

func (f *fakeRunState) LoadCursor(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor, nil
}

func (f *fakeRunState) SaveCursor(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursorErr != nil {
		return f.cursorErr
	}
	f.cursor = token
	f.savedCount++
	return nil
}

func (f *fakeRunState) ClearCursor(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursor = ""
	return nil
}
