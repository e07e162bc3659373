package matching

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storelink/backend/internal/domain/customer"
	"github.com/storelink/backend/internal/domain/matching"
	"github.com/storelink/backend/internal/domain/order"
)

// StatsResponse summarizes mapping coverage. MappingRate is derived on read
// and never stored.
type StatsResponse struct {
	TotalOrders    int64   `json:"total_orders"`
	MappedOrders   int64   `json:"mapped_orders"`
	UnmappedOrders int64   `json:"unmapped_orders"`
	MappingRate    float64 `json:"mapping_rate"`
	TotalCustomers int64   `json:"total_customers"`
}

// MappingResponse is the serialized mapping block of an order
type MappingResponse struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Method     string    `json:"method"`
	Confidence float64   `json:"confidence"`
	MappedAt   time.Time `json:"mapped_at"`
	MappedBy   string    `json:"mapped_by"`
}

// OrderResponse is an order as seen by the matching API
type OrderResponse struct {
	ID               uuid.UUID           `json:"id"`
	OrderNo          string              `json:"order_no"`
	CustomerNameRaw  string              `json:"customer_name_raw"`
	CustomerPhoneRaw string              `json:"customer_phone_raw"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	PlacedAt         time.Time           `json:"placed_at"`
	Mapping          *MappingResponse    `json:"mapping,omitempty"`
	Candidates       []CandidateResponse `json:"candidates,omitempty"`
}

// CandidateResponse is one scored customer candidate for an order
type CandidateResponse struct {
	CustomerID   uuid.UUID `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	Confidence   float64   `json:"confidence"`
	NameMatched  bool      `json:"name_matched"`
}

// CustomerResponse is a customer in search results and mapping detail
type CustomerResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	PhoneCanonical string          `json:"phone_canonical"`
	Email          string          `json:"email,omitempty"`
	TotalOrders    int64           `json:"total_orders"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	LastOrderDate  *time.Time      `json:"last_order_date,omitempty"`
}

// ManualMapRequest maps one order to one customer by operator decision
type ManualMapRequest struct {
	OrderID    uuid.UUID `json:"order_id" binding:"required"`
	CustomerID uuid.UUID `json:"customer_id" binding:"required"`
}

// MappingAppliedResponse reports a committed mapping transition
type MappingAppliedResponse struct {
	OrderID            uuid.UUID  `json:"order_id"`
	OrderNo            string     `json:"order_no"`
	CustomerID         uuid.UUID  `json:"customer_id"`
	Method             string     `json:"method"`
	Confidence         float64    `json:"confidence"`
	MappedAt           time.Time  `json:"mapped_at"`
	PreviousCustomerID *uuid.UUID `json:"previous_customer_id,omitempty"`
}

func toOrderResponse(o *order.Order, candidates []matching.Candidate) *OrderResponse {
	resp := &OrderResponse{
		ID:               o.ID,
		OrderNo:          o.OrderNo,
		CustomerNameRaw:  o.CustomerNameRaw,
		CustomerPhoneRaw: o.CustomerPhoneRaw,
		TotalAmount:      o.TotalAmount,
		PlacedAt:         o.PlacedAt,
	}
	if o.Mapping != nil {
		resp.Mapping = &MappingResponse{
			CustomerID: o.Mapping.CustomerID,
			Method:     string(o.Mapping.Method),
			Confidence: o.Mapping.Confidence,
			MappedAt:   o.Mapping.MappedAt,
			MappedBy:   o.Mapping.MappedBy,
		}
	}
	for _, c := range candidates {
		resp.Candidates = append(resp.Candidates, CandidateResponse{
			CustomerID:   c.CustomerID,
			CustomerName: c.CustomerName,
			Confidence:   c.Confidence,
			NameMatched:  c.NameMatched,
		})
	}
	return resp
}

func toCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		ID:             c.ID,
		Name:           c.Name,
		PhoneCanonical: c.PhoneCanonical,
		Email:          c.Email,
		TotalOrders:    c.TotalOrders,
		TotalSpent:     c.TotalSpent,
		LastOrderDate:  c.LastOrderDate,
	}
}

func toMappingAppliedResponse(a *MappingApplied) *MappingAppliedResponse {
	resp := &MappingAppliedResponse{
		OrderID:    a.OrderID,
		OrderNo:    a.OrderNo,
		CustomerID: a.CustomerID,
		Method:     string(a.Method),
		Confidence: a.Confidence,
		MappedAt:   a.MappedAt,
	}
	if a.Previous != nil {
		prev := a.Previous.CustomerID
		resp.PreviousCustomerID = &prev
	}
	return resp
}
