package matching

import (
	"context"
	"testing"
	"time"

	"github.com/storelink/backend/internal/domain/matching"
	"github.com/storelink/backend/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newReconcilerFixture(cfg ReconcilerConfig) (*Reconciler, *fakeOrderRepo, *fakeCustomerRepo, *fakeRunState) {
	orders := newFakeOrderRepo()
	customers := newFakeCustomerRepo()
	updater := NewAggregateUpdater(customers, zap.NewNop())
	ledger := NewLedger(orders, customers, updater, zap.NewNop())
	resolver := matching.NewResolver(customers, "")
	mapper := NewAutoMapper(resolver, ledger, zap.NewNop())
	state := &fakeRunState{}
	return NewReconciler(orders, mapper, ledger, state, cfg, zap.NewNop()), orders, customers, state
}

func fastConfig() ReconcilerConfig {
	return ReconcilerConfig{
		BatchSize:    2,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		LockTTL:      time.Minute,
		RepairLimit:  100,
	}
}

func TestReconcilerRun(t *testing.T) {
	r, orders, customers, state := newReconcilerFixture(fastConfig())
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	customers.put(makeCustomer(t, "Somchai", "+66812345678"))
	customers.put(makeCustomer(t, "Somsri", "+66899999999"))
	orders.put(makeOrder(t, "SO-1", "Somchai", "0812345678", 100, base))
	orders.put(makeOrder(t, "SO-2", "Somsri", "0899999999", 200, base.Add(time.Hour)))
	orders.put(makeOrder(t, "SO-3", "Unknown", "0877777777", 300, base.Add(2*time.Hour)))

	report, err := r.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 1, report.SkippedNoMatch)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Cursor, "a drained run carries no resume point")
	assert.Empty(t, state.cursor, "a drained run clears the persisted cursor")
	assert.False(t, state.locked, "the run lock must be released")

	unmapped, _ := orders.CountUnmapped(context.Background())
	assert.Equal(t, int64(1), unmapped)
}

func TestReconcilerRunIsExclusive(t *testing.T) {
	r, _, _, state := newReconcilerFixture(fastConfig())
	state.locked = true

	_, err := r.Run(context.Background(), false)
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestReconcilerRunIsIdempotent(t *testing.T) {
	r, orders, customers, _ := newReconcilerFixture(fastConfig())
	c := makeCustomer(t, "Somchai", "+66812345678")
	customers.put(c)
	orders.put(makeOrder(t, "SO-1", "Somchai", "0812345678", 100, time.Now()))

	first, err := r.Run(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 1, first.SuccessCount)

	second, err := r.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, second.SuccessCount, "a rescan must not double-map")
	assert.Equal(t, 0, second.Scanned, "mapped orders leave the unmapped stream")
	assert.Equal(t, int64(1), customers.get(c.ID).TotalOrders, "aggregates are counted exactly once across reruns")
}

func TestReconcilerResumesFromCursor(t *testing.T) {
	cfg := fastConfig()
	r, orders, customers, state := newReconcilerFixture(cfg)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	customers.put(makeCustomer(t, "Somchai", "+66812345678"))
	early := makeOrder(t, "SO-1", "Somchai", "0812345678", 100, base)
	late := makeOrder(t, "SO-2", "Somchai", "0812345678", 200, base.Add(time.Hour))
	orders.put(early)
	orders.put(late)

	state.cursor = EncodeCursor(order.StreamPosition{PlacedAt: early.PlacedAt, OrderID: early.ID})

	report, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned, "orders at or before the cursor are not revisited")
	assert.False(t, orders.get(early.ID).IsMapped())
	assert.True(t, orders.get(late.ID).IsMapped())
}

func TestReconcilerDrainedRunRevisitsSkippedOrders(t *testing.T) {
	r, orders, customers, state := newReconcilerFixture(fastConfig())
	o := makeOrder(t, "SO-1", "Somchai", "0812345678", 100, time.Now())
	orders.put(o)

	first, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, first.SkippedNoMatch)
	assert.Empty(t, state.cursor)

	// The customer arrives after the first sweep. A plain resume run must
	// pick the previously skipped order up without a full batch-sync.
	customers.put(makeCustomer(t, "Somchai", "+66812345678"))

	second, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, second.SuccessCount)
	assert.True(t, orders.get(o.ID).IsMapped())
}

func TestReconcilerFromStartIgnoresCursor(t *testing.T) {
	r, orders, customers, state := newReconcilerFixture(fastConfig())
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	customers.put(makeCustomer(t, "Somchai", "+66812345678"))
	early := makeOrder(t, "SO-1", "Somchai", "0812345678", 100, base)
	orders.put(early)
	state.cursor = EncodeCursor(order.StreamPosition{PlacedAt: base.Add(time.Hour), OrderID: early.ID})

	report, err := r.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessCount)
	assert.True(t, orders.get(early.ID).IsMapped())
}

func TestReconcilerMalformedCursorFallsBack(t *testing.T) {
	r, orders, customers, state := newReconcilerFixture(fastConfig())
	customers.put(makeCustomer(t, "Somchai", "+66812345678"))
	orders.put(makeOrder(t, "SO-1", "Somchai", "0812345678", 100, time.Now()))
	state.cursor = "not-base64!"

	report, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessCount)
}

func TestReconcilerRetriesTransientFailures(t *testing.T) {
	r, orders, customers, _ := newReconcilerFixture(fastConfig())
	customers.put(makeCustomer(t, "Somchai", "+66812345678"))
	orders.put(makeOrder(t, "SO-1", "Somchai", "0812345678", 100, time.Now()))
	orders.transientClaims = 1

	report, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Empty(t, report.Errors)
	assert.GreaterOrEqual(t, orders.claimCalls, 2)
}

func TestReconcilerRecordsTerminalFailure(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 1
	r, orders, customers, _ := newReconcilerFixture(cfg)
	customers.put(makeCustomer(t, "Somchai", "+66812345678"))
	o := makeOrder(t, "SO-1", "Somchai", "0812345678", 100, time.Now())
	orders.put(o)
	orders.transientClaims = 10

	report, err := r.Run(context.Background(), false)
	require.NoError(t, err, "a single order's failure never aborts the run")
	assert.Equal(t, 0, report.SuccessCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, o.ID, report.Errors[0].OrderID)
}

func TestReconcilerCancellation(t *testing.T) {
	r, orders, customers, state := newReconcilerFixture(fastConfig())
	customers.put(makeCustomer(t, "Somchai", "+66812345678"))
	orders.put(makeOrder(t, "SO-1", "Somchai", "0812345678", 100, time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx, false)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 0, report.Scanned)
	assert.False(t, state.locked)
}

func TestReconcilerRepairsBeforeSweeping(t *testing.T) {
	r, orders, customers, _ := newReconcilerFixture(fastConfig())
	c := makeCustomer(t, "Somchai", "+66812345678")
	customers.put(c)

	// An order whose mapping landed but whose aggregate phase did not.
	o := makeOrder(t, "SO-1", "Somchai", "0812345678", 100, time.Now())
	require.NoError(t, o.ApplyMapping(c.ID, order.MappingMethodBatch, 0.9, "reconciler"))
	orders.put(o)

	_, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Contains(t, customers.recomputedFull, c.ID)
	assert.False(t, orders.get(o.ID).PendingAggregate)
}

func TestReconcilerCursorWriteFailureStopsRun(t *testing.T) {
	r, orders, customers, state := newReconcilerFixture(fastConfig())
	customers.put(makeCustomer(t, "Somchai", "+66812345678"))
	orders.put(makeOrder(t, "SO-1", "Somchai", "0812345678", 100, time.Now()))
	state.cursorErr = assert.AnError

	_, err := r.Run(context.Background(), false)
	assert.Error(t, err)
	assert.False(t, state.locked)
}
