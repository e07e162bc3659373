package customer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCustomer(t *testing.T) {
	c, err := NewCustomer("Somchai", "+66812345678", "Somchai@Example.com")
	require.NoError(t, err)

	assert.Equal(t, "Somchai", c.Name)
	assert.Equal(t, "+66812345678", c.PhoneCanonical)
	assert.Equal(t, "somchai@example.com", c.Email)
	assert.Equal(t, int64(0), c.TotalOrders)
	assert.True(t, c.TotalSpent.IsZero())
	assert.Nil(t, c.LastOrderDate)
}

func TestNewCustomerValidation(t *testing.T) {
	_, err := NewCustomer("", "+66812345678", "")
	assert.Error(t, err)

	_, err = NewCustomer("Somchai", "0812345678", "")
	assert.Error(t, err, "non-canonical phone must be rejected")
}

func TestApplyOrder(t *testing.T) {
	c, err := NewCustomer("Somchai", "+66812345678", "")
	require.NoError(t, err)

	placed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	c.ApplyOrder(decimal.NewFromInt(250), placed)

	assert.Equal(t, int64(1), c.TotalOrders)
	assert.True(t, c.TotalSpent.Equal(decimal.NewFromInt(250)))
	require.NotNil(t, c.LastOrderDate)
	assert.Equal(t, placed, *c.LastOrderDate)
}

func TestApplyOrderKeepsLaterDate(t *testing.T) {
	c, err := NewCustomer("Somchai", "+66812345678", "")
	require.NoError(t, err)

	later := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	c.ApplyOrder(decimal.NewFromInt(100), later)
	c.ApplyOrder(decimal.NewFromInt(50), earlier)

	assert.Equal(t, int64(2), c.TotalOrders)
	assert.Equal(t, later, *c.LastOrderDate, "an older order must not roll back the last order date")
}

func TestReverseOrder(t *testing.T) {
	c, err := NewCustomer("Somchai", "+66812345678", "")
	require.NoError(t, err)

	placed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c.ApplyOrder(decimal.NewFromInt(250), placed)
	c.ReverseOrder(decimal.NewFromInt(250))

	assert.Equal(t, int64(0), c.TotalOrders)
	assert.True(t, c.TotalSpent.IsZero())
	// LastOrderDate is recomputed by the store, not rolled back here.
	assert.NotNil(t, c.LastOrderDate)
}
