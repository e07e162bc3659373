package order

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storelink/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("so-100", "Somchai", "0812345678", decimal.NewFromInt(250), time.Now())
	require.NoError(t, err)
	return o
}

func TestNewOrder(t *testing.T) {
	o := newOrder(t)

	assert.Equal(t, "SO-100", o.OrderNo)
	assert.False(t, o.IsMapped())
	assert.False(t, o.PendingAggregate)
	assert.Equal(t, 1, o.Version)
}

func TestNewOrderValidation(t *testing.T) {
	_, err := NewOrder("", "Somchai", "0812345678", decimal.NewFromInt(1), time.Now())
	assert.Error(t, err)

	_, err = NewOrder("SO-1", "Somchai", "0812345678", decimal.NewFromInt(-1), time.Now())
	assert.Error(t, err)
}

func TestApplyMappingAuto(t *testing.T) {
	o := newOrder(t)
	customerID := uuid.New()

	err := o.ApplyMapping(customerID, MappingMethodAuto, 1.0, "reconciler")
	require.NoError(t, err)

	require.True(t, o.IsMapped())
	assert.Equal(t, customerID, o.Mapping.CustomerID)
	assert.Equal(t, MappingMethodAuto, o.Mapping.Method)
	assert.Equal(t, 1.0, o.Mapping.Confidence)
	assert.True(t, o.PendingAggregate)
	assert.Equal(t, 2, o.Version)
}

func TestApplyMappingAutoOnMappedOrderConflicts(t *testing.T) {
	o := newOrder(t)
	require.NoError(t, o.ApplyMapping(uuid.New(), MappingMethodAuto, 0.9, "reconciler"))
	first := o.Mapping.CustomerID

	err := o.ApplyMapping(uuid.New(), MappingMethodAuto, 1.0, "reconciler")
	assert.ErrorIs(t, err, shared.ErrMappingConflict)
	assert.Equal(t, first, o.Mapping.CustomerID)

	err = o.ApplyMapping(uuid.New(), MappingMethodBatch, 1.0, "reconciler")
	assert.ErrorIs(t, err, shared.ErrMappingConflict)
}

func TestApplyMappingManualOverrides(t *testing.T) {
	o := newOrder(t)
	require.NoError(t, o.ApplyMapping(uuid.New(), MappingMethodAuto, 0.9, "reconciler"))
	o.MarkAggregateApplied()

	target := uuid.New()
	err := o.ApplyMapping(target, MappingMethodManual, 1.0, "admin@storelink")
	require.NoError(t, err)

	assert.Equal(t, target, o.Mapping.CustomerID)
	assert.Equal(t, MappingMethodManual, o.Mapping.Method)
	assert.True(t, o.PendingAggregate)
}

func TestApplyMappingValidation(t *testing.T) {
	o := newOrder(t)

	assert.Error(t, o.ApplyMapping(uuid.New(), "guess", 1.0, "x"))
	assert.Error(t, o.ApplyMapping(uuid.New(), MappingMethodAuto, 1.5, "x"))
	assert.Error(t, o.ApplyMapping(uuid.New(), MappingMethodAuto, -0.1, "x"))
	assert.Error(t, o.ApplyMapping(uuid.Nil, MappingMethodAuto, 1.0, "x"))
	assert.False(t, o.IsMapped())
}

func TestClearMapping(t *testing.T) {
	o := newOrder(t)

	err := o.ClearMapping()
	assert.Error(t, err)

	require.NoError(t, o.ApplyMapping(uuid.New(), MappingMethodManual, 1.0, "admin"))
	o.MarkAggregateApplied()

	require.NoError(t, o.ClearMapping())
	assert.False(t, o.IsMapped())
	assert.True(t, o.PendingAggregate)
}

func TestMarkAggregateApplied(t *testing.T) {
	o := newOrder(t)
	require.NoError(t, o.ApplyMapping(uuid.New(), MappingMethodBatch, 0.9, "reconciler"))
	require.True(t, o.PendingAggregate)

	o.MarkAggregateApplied()
	assert.False(t, o.PendingAggregate)
}
