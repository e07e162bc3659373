package matching

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storelink/backend/internal/domain/customer"
	"github.com/storelink/backend/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCandidateFinder struct {
	byPhone map[string][]customer.Customer
	err     error
}

func (s *stubCandidateFinder) FindByCanonicalPhone(_ context.Context, phone string) ([]customer.Customer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byPhone[phone], nil
}

func newTestOrder(t *testing.T, name, phone string) *order.Order {
	t.Helper()
	o, err := order.NewOrder("SO-001", name, phone, decimal.NewFromInt(100), time.Now())
	require.NoError(t, err)
	return o
}

func newTestCustomer(t *testing.T, name, phone string) customer.Customer {
	t.Helper()
	c, err := customer.NewCustomer(name, phone, "")
	require.NoError(t, err)
	return *c
}

func TestResolverPhoneAndNameAgreement(t *testing.T) {
	c := newTestCustomer(t, "Somchai", "+66812345678")
	finder := &stubCandidateFinder{byPhone: map[string][]customer.Customer{
		"+66812345678": {c},
	}}
	r := NewResolver(finder, "")

	res, err := r.Resolve(context.Background(), newTestOrder(t, "Somchai", "0812345678"))
	require.NoError(t, err)
	require.False(t, res.Empty())
	assert.False(t, res.Ambiguous)
	assert.Equal(t, c.ID, res.Best().CustomerID)
	assert.Equal(t, ConfidencePhoneAndName, res.Best().Confidence)
	assert.True(t, res.Best().NameMatched)
}

func TestResolverPhoneOnlyMatch(t *testing.T) {
	c := newTestCustomer(t, "Somchai", "+66812345678")
	finder := &stubCandidateFinder{byPhone: map[string][]customer.Customer{
		"+66812345678": {c},
	}}
	r := NewResolver(finder, "")

	res, err := r.Resolve(context.Background(), newTestOrder(t, "Somsri", "0812345678"))
	require.NoError(t, err)
	require.False(t, res.Empty())
	assert.False(t, res.Ambiguous)
	assert.Equal(t, ConfidencePhoneMatch, res.Best().Confidence)
	assert.False(t, res.Best().NameMatched)
}

func TestResolverDuplicatePhonesAreAmbiguous(t *testing.T) {
	c1 := newTestCustomer(t, "Somchai", "+66812345678")
	c2 := newTestCustomer(t, "Somchai J.", "+66812345678")
	finder := &stubCandidateFinder{byPhone: map[string][]customer.Customer{
		"+66812345678": {c1, c2},
	}}
	r := NewResolver(finder, "")

	res, err := r.Resolve(context.Background(), newTestOrder(t, "Nobody", "0812345678"))
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)
	assert.True(t, res.Ambiguous)
}

func TestResolverNameAgreementNeverBreaksDuplicateTie(t *testing.T) {
	// A name match on one of two customers sharing a phone does not lift
	// the set out of ambiguity; a shared number keeps equal confidence.
	c1 := newTestCustomer(t, "Somchai", "+66812345678")
	c2 := newTestCustomer(t, "Somsri", "+66812345678")
	finder := &stubCandidateFinder{byPhone: map[string][]customer.Customer{
		"+66812345678": {c2, c1},
	}}
	r := NewResolver(finder, "")

	res, err := r.Resolve(context.Background(), newTestOrder(t, "somchai", "0812345678"))
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.True(t, res.Ambiguous)
	for _, cand := range res.Candidates {
		assert.Equal(t, ConfidencePhoneMatch, cand.Confidence)
	}
}

func TestResolverInvalidPhoneYieldsEmpty(t *testing.T) {
	finder := &stubCandidateFinder{}
	r := NewResolver(finder, "")

	res, err := r.Resolve(context.Background(), newTestOrder(t, "Somchai", "not a phone"))
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.False(t, res.Ambiguous)
}

func TestResolverNoPhoneMatchYieldsEmpty(t *testing.T) {
	finder := &stubCandidateFinder{byPhone: map[string][]customer.Customer{}}
	r := NewResolver(finder, "")

	res, err := r.Resolve(context.Background(), newTestOrder(t, "Somchai", "0899999999"))
	require.NoError(t, err)
	assert.True(t, res.Empty())
}
