package customer

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storelink/backend/internal/domain/shared"
)

// Customer represents a canonical customer record.
// The identity attributes (name, canonical phone, email) are owned by the
// customer subsystem and read-only here; the matching engine only maintains
// the denormalized order aggregates block.
type Customer struct {
	shared.BaseAggregateRoot
	Name           string
	PhoneCanonical string
	Email          string

	// Order aggregates, derived from the set of orders mapped to this
	// customer. Writable only through the aggregate updater.
	TotalOrders   int64
	TotalSpent    decimal.Decimal
	LastOrderDate *time.Time
}

// NewCustomer creates a new customer with required fields
func NewCustomer(name, phoneCanonical, email string) (*Customer, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if phoneCanonical != "" && !strings.HasPrefix(phoneCanonical, "+") {
		return nil, shared.NewDomainError("INVALID_PHONE", "Canonical phone must be in international form")
	}

	return &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		PhoneCanonical:    phoneCanonical,
		Email:             strings.ToLower(strings.TrimSpace(email)),
		TotalSpent:        decimal.Zero,
	}, nil
}

// ApplyOrder adds one mapped order's contribution to the aggregate block.
// lastOrderDate only moves forward; an older order never rolls it back.
func (c *Customer) ApplyOrder(amount decimal.Decimal, placedAt time.Time) {
	c.TotalOrders++
	c.TotalSpent = c.TotalSpent.Add(amount)
	if c.LastOrderDate == nil || placedAt.After(*c.LastOrderDate) {
		t := placedAt
		c.LastOrderDate = &t
	}
	c.Touch()
	c.IncrementVersion()
}

// ReverseOrder removes one mapped order's contribution. LastOrderDate is NOT
// touched here: it must be recomputed from the remaining mapped orders,
// because another order may hold the same or a later date.
func (c *Customer) ReverseOrder(amount decimal.Decimal) {
	c.TotalOrders--
	c.TotalSpent = c.TotalSpent.Sub(amount)
	c.Touch()
	c.IncrementVersion()
}

// HasOrders returns true if any order is currently mapped to this customer
func (c *Customer) HasOrders() bool {
	return c.TotalOrders > 0
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError("INVALID_NAME", "Customer name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Customer name cannot exceed 200 characters")
	}
	return nil
}
