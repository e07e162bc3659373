package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storelink/backend/internal/domain/customer"
	"github.com/storelink/backend/internal/domain/shared"
	"github.com/storelink/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustomerRepository implements customer.Repository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCanonicalPhone returns every customer sharing the canonical phone.
// Ordered by ID so duplicate sets come back in a stable order.
func (r *GormCustomerRepository) FindByCanonicalPhone(ctx context.Context, phone string) ([]customer.Customer, error) {
	if phone == "" {
		return nil, nil
	}
	var customerModels []models.CustomerModel
	if err := r.db.WithContext(ctx).
		Where("phone_canonical = ?", phone).
		Order("id ASC").
		Find(&customerModels).Error; err != nil {
		return nil, err
	}

	customers := make([]customer.Customer, len(customerModels))
	for i, model := range customerModels {
		customers[i] = *model.ToDomain()
	}
	return customers, nil
}

// Search ranks candidates for the manual-mapping picker: exact canonical
// phone first, then substring matches on name/email, ties broken by order
// volume.
func (r *GormCustomerRepository) Search(ctx context.Context, query string, limit int) ([]customer.Customer, error) {
	pattern := "%" + strings.ToLower(query) + "%"

	var customerModels []models.CustomerModel
	if err := r.db.WithContext(ctx).
		Where("phone_canonical = ? OR LOWER(name) LIKE ? OR LOWER(email) LIKE ?", query, pattern, pattern).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN phone_canonical = ? THEN 0 ELSE 1 END, total_orders DESC, name ASC",
			Vars:               []any{query},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&customerModels).Error; err != nil {
		return nil, err
	}

	customers := make([]customer.Customer, len(customerModels))
	for i, model := range customerModels {
		customers[i] = *model.ToDomain()
	}
	return customers, nil
}

// Save creates or updates a customer
func (r *GormCustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	model := models.CustomerModelFromDomain(c)
	return r.db.WithContext(ctx).Save(model).Error
}

// Count counts all customers
func (r *GormCustomerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ApplyOrderAggregate atomically shifts the customer's aggregate block by one
// order. A single UPDATE keeps concurrent mappings against the same customer
// commutative without a read-modify-write cycle. For a credit, lastOrderDate
// only advances; for a reversal it is left alone, the caller recomputes it.
func (r *GormCustomerRepository) ApplyOrderAggregate(ctx context.Context, customerID uuid.UUID, delta int, amount decimal.Decimal, placedAt time.Time) error {
	if delta < 0 {
		amount = amount.Neg()
	}
	sql := `UPDATE customers
		SET total_orders = total_orders + ?,
		    total_spent = total_spent + ?,
		    updated_at = ?`
	args := []any{delta, amount, time.Now()}

	if delta > 0 {
		sql += `,
		    last_order_date = CASE
		        WHEN last_order_date IS NULL OR last_order_date < ? THEN ?
		        ELSE last_order_date
		    END`
		args = append(args, placedAt, placedAt)
	}
	sql += ` WHERE id = ?`
	args = append(args, customerID)

	result := r.db.WithContext(ctx).Exec(sql, args...)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RecomputeLastOrderDate derives lastOrderDate from the currently mapped
// orders of the customer.
func (r *GormCustomerRepository) RecomputeLastOrderDate(ctx context.Context, customerID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`UPDATE customers
		SET last_order_date = (SELECT MAX(placed_at) FROM orders WHERE mapping_customer_id = customers.id),
		    updated_at = ?
		WHERE id = ?`, time.Now(), customerID).Error
}

// RecomputeAggregates rebuilds the whole aggregate block from the mapped-order
// set. Idempotent; the repair pass relies on that.
func (r *GormCustomerRepository) RecomputeAggregates(ctx context.Context, customerID uuid.UUID) error {
	result := r.db.WithContext(ctx).Exec(`UPDATE customers
		SET total_orders = (SELECT COUNT(*) FROM orders WHERE mapping_customer_id = ?),
		    total_spent = COALESCE((SELECT SUM(total_amount) FROM orders WHERE mapping_customer_id = ?), 0),
		    last_order_date = (SELECT MAX(placed_at) FROM orders WHERE mapping_customer_id = ?),
		    updated_at = ?
		WHERE id = ?`, customerID, customerID, customerID, time.Now(), customerID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormCustomerRepository implements customer.Repository
var _ customer.Repository = (*GormCustomerRepository)(nil)
