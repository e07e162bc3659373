package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storelink/backend/internal/domain/shared"
)

// MappingMethod records how an order was linked to a customer
type MappingMethod string

const (
	MappingMethodAuto   MappingMethod = "auto"
	MappingMethodManual MappingMethod = "manual"
	MappingMethodBatch  MappingMethod = "batch"
)

// Mapping is the persisted link from an order to a customer.
// Absence (nil) means the order is unmapped.
type Mapping struct {
	CustomerID uuid.UUID
	Method     MappingMethod
	Confidence float64
	MappedAt   time.Time
	MappedBy   string
}

// Order represents a storefront order as seen by the matching engine.
// The capture fields are immutable here; only the mapping block and the
// pending-aggregate marker are ever written.
type Order struct {
	shared.BaseAggregateRoot
	OrderNo          string
	CustomerNameRaw  string
	CustomerPhoneRaw string
	TotalAmount      decimal.Decimal
	PlacedAt         time.Time

	Mapping *Mapping

	// PendingAggregate marks an order whose mapping write has landed but
	// whose customer aggregate adjustment may not have. The repair pass
	// clears it.
	PendingAggregate bool
	// PrevCustomerID is captured while a re-map or unmap is in flight, so
	// the repair pass knows which customer's aggregates to reverse. Cleared
	// together with PendingAggregate.
	PrevCustomerID *uuid.UUID
}

// NewOrder creates a new unmapped order. Mapping state starts absent; the
// order-taking subsystem owns every other field after creation.
func NewOrder(orderNo, customerNameRaw, customerPhoneRaw string, totalAmount decimal.Decimal, placedAt time.Time) (*Order, error) {
	if strings.TrimSpace(orderNo) == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NO", "Order number cannot be empty")
	}
	if totalAmount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Order total cannot be negative")
	}
	return &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNo:           strings.ToUpper(orderNo),
		CustomerNameRaw:   customerNameRaw,
		CustomerPhoneRaw:  customerPhoneRaw,
		TotalAmount:       totalAmount,
		PlacedAt:          placedAt,
	}, nil
}

// IsMapped returns true if the order currently has an active mapping
func (o *Order) IsMapped() bool {
	return o.Mapping != nil
}

// ApplyMapping sets the order's mapping. Preconditions:
//   - auto/batch only apply to a currently-unmapped order; a mapped order
//     yields ErrMappingConflict (the benign lost-race signal).
//   - manual always applies, overriding any prior mapping.
//
// The pending-aggregate marker is raised so a crash between the mapping
// write and the aggregate adjustment is repairable.
func (o *Order) ApplyMapping(customerID uuid.UUID, method MappingMethod, confidence float64, mappedBy string) error {
	if err := validateMethod(method); err != nil {
		return err
	}
	if confidence < 0 || confidence > 1 {
		return shared.NewDomainError("INVALID_CONFIDENCE", "Confidence must be within [0, 1]")
	}
	if customerID == uuid.Nil {
		return shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if o.IsMapped() && method != MappingMethodManual {
		return shared.ErrMappingConflict
	}

	if o.IsMapped() && o.Mapping.CustomerID != customerID {
		prev := o.Mapping.CustomerID
		o.PrevCustomerID = &prev
	}
	o.Mapping = &Mapping{
		CustomerID: customerID,
		Method:     method,
		Confidence: confidence,
		MappedAt:   time.Now(),
		MappedBy:   mappedBy,
	}
	o.PendingAggregate = true
	o.Touch()
	o.IncrementVersion()

	return nil
}

// ClearMapping removes the active mapping (explicit administrator action).
// The pending marker is raised for the aggregate reversal.
func (o *Order) ClearMapping() error {
	if !o.IsMapped() {
		return shared.NewDomainError("NOT_MAPPED", "Order has no active mapping")
	}

	prev := o.Mapping.CustomerID
	o.PrevCustomerID = &prev
	o.Mapping = nil
	o.PendingAggregate = true
	o.Touch()
	o.IncrementVersion()

	return nil
}

// MarkAggregateApplied clears the pending-aggregate marker once the customer
// aggregate adjustment for the last mapping transition has been applied.
// Deliberately not a versioned transition: the marker piggybacks on whatever
// write carries it.
func (o *Order) MarkAggregateApplied() {
	o.PendingAggregate = false
	o.PrevCustomerID = nil
	o.Touch()
}

func validateMethod(method MappingMethod) error {
	switch method {
	case MappingMethodAuto, MappingMethodManual, MappingMethodBatch:
		return nil
	default:
		return shared.NewDomainError("INVALID_METHOD", "Mapping method must be 'auto', 'manual', or 'batch'")
	}
}
