package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/storelink/backend/internal/domain/customer"
)

// CustomerModel is the persistence model for the Customer domain entity.
type CustomerModel struct {
	AggregateModel
	Name           string          `gorm:"type:varchar(200);not null"`
	PhoneCanonical string          `gorm:"type:varchar(32);index"`
	Email          string          `gorm:"type:varchar(200);index"`
	TotalOrders    int64           `gorm:"not null;default:0"`
	TotalSpent     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastOrderDate  *time.Time
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer entity.
func (m *CustomerModel) ToDomain() *customer.Customer {
	return &customer.Customer{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		PhoneCanonical:    m.PhoneCanonical,
		Email:             m.Email,
		TotalOrders:       m.TotalOrders,
		TotalSpent:        m.TotalSpent,
		LastOrderDate:     m.LastOrderDate,
	}
}

// FromDomain populates the persistence model from a domain Customer entity.
func (m *CustomerModel) FromDomain(c *customer.Customer) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Name = c.Name
	m.PhoneCanonical = c.PhoneCanonical
	m.Email = c.Email
	m.TotalOrders = c.TotalOrders
	m.TotalSpent = c.TotalSpent
	m.LastOrderDate = c.LastOrderDate
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer entity.
func CustomerModelFromDomain(c *customer.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}
