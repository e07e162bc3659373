package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storelink/backend/internal/domain/order"
)

// OrderModel is the persistence model for the Order domain entity. The
// mapping block is flattened into nullable mapping_* columns; a NULL
// mapping_customer_id means the order is unmapped, which is what the
// conditional claim statement keys on.
type OrderModel struct {
	AggregateModel
	OrderNo          string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerNameRaw  string          `gorm:"type:varchar(200)"`
	CustomerPhoneRaw string          `gorm:"type:varchar(50)"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PlacedAt         time.Time       `gorm:"not null;index:idx_orders_placed_at_id,priority:1"`

	MappingCustomerID *uuid.UUID `gorm:"type:uuid;index"`
	MappingMethod     *string    `gorm:"type:varchar(20)"`
	MappingConfidence *float64
	MappedAt          *time.Time
	MappedBy          *string `gorm:"type:varchar(200)"`

	PendingAggregate bool       `gorm:"not null;default:false;index"`
	PrevCustomerID   *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order entity.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		OrderNo:           m.OrderNo,
		CustomerNameRaw:   m.CustomerNameRaw,
		CustomerPhoneRaw:  m.CustomerPhoneRaw,
		TotalAmount:       m.TotalAmount,
		PlacedAt:          m.PlacedAt,
		PendingAggregate:  m.PendingAggregate,
		PrevCustomerID:    m.PrevCustomerID,
	}
	if m.MappingCustomerID != nil {
		mapping := &order.Mapping{CustomerID: *m.MappingCustomerID}
		if m.MappingMethod != nil {
			mapping.Method = order.MappingMethod(*m.MappingMethod)
		}
		if m.MappingConfidence != nil {
			mapping.Confidence = *m.MappingConfidence
		}
		if m.MappedAt != nil {
			mapping.MappedAt = *m.MappedAt
		}
		if m.MappedBy != nil {
			mapping.MappedBy = *m.MappedBy
		}
		o.Mapping = mapping
	}
	return o
}

// FromDomain populates the persistence model from a domain Order entity.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.OrderNo = o.OrderNo
	m.CustomerNameRaw = o.CustomerNameRaw
	m.CustomerPhoneRaw = o.CustomerPhoneRaw
	m.TotalAmount = o.TotalAmount
	m.PlacedAt = o.PlacedAt
	m.PendingAggregate = o.PendingAggregate
	m.PrevCustomerID = o.PrevCustomerID

	if o.Mapping != nil {
		customerID := o.Mapping.CustomerID
		method := string(o.Mapping.Method)
		confidence := o.Mapping.Confidence
		mappedAt := o.Mapping.MappedAt
		mappedBy := o.Mapping.MappedBy
		m.MappingCustomerID = &customerID
		m.MappingMethod = &method
		m.MappingConfidence = &confidence
		m.MappedAt = &mappedAt
		m.MappedBy = &mappedBy
	} else {
		m.MappingCustomerID = nil
		m.MappingMethod = nil
		m.MappingConfidence = nil
		m.MappedAt = nil
		m.MappedBy = nil
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order entity.
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}
