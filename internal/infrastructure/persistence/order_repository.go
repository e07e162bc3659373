package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/storelink/backend/internal/domain/order"
	"github.com/storelink/backend/internal/domain/shared"
	"github.com/storelink/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates an order
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock persists with an optimistic version check. The domain already
// incremented the version, so the stored row must still carry the previous
// one.
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", o.ID, o.Version-1).
		Select("*").Omit("id", "created_at").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// ClaimMapping conditionally writes the mapping onto a still-unmapped order
// in a single statement. The WHERE clause is the at-most-one-mapping
// guarantee: two concurrent claimers cannot both see a NULL
// mapping_customer_id.
func (r *GormOrderRepository) ClaimMapping(ctx context.Context, orderID uuid.UUID, m order.Mapping) error {
	result := r.db.WithContext(ctx).Exec(`UPDATE orders
		SET mapping_customer_id = ?,
		    mapping_method = ?,
		    mapping_confidence = ?,
		    mapped_at = ?,
		    mapped_by = ?,
		    pending_aggregate = ?,
		    version = version + 1,
		    updated_at = ?
		WHERE id = ? AND mapping_customer_id IS NULL`,
		m.CustomerID, string(m.Method), m.Confidence, m.MappedAt, m.MappedBy,
		true, time.Now(), orderID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either the order is gone or another writer claimed it first.
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
			Where("id = ?", orderID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrMappingConflict
	}
	return nil
}

// ClearPendingAggregate lowers the two-phase marker and drops the captured
// previous customer.
func (r *GormOrderRepository) ClearPendingAggregate(ctx context.Context, orderID uuid.UUID) error {
	result := r.db.WithContext(ctx).Exec(`UPDATE orders
		SET pending_aggregate = ?, prev_customer_id = NULL, updated_at = ?
		WHERE id = ?`, false, time.Now(), orderID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListUnmappedAfter streams unmapped orders in (placed_at, id) order,
// strictly after pos. Keyset pagination keeps resumed runs stable even while
// earlier orders get mapped underneath the scan.
func (r *GormOrderRepository) ListUnmappedAfter(ctx context.Context, pos *order.StreamPosition, limit int) ([]order.Order, error) {
	query := r.db.WithContext(ctx).
		Where("mapping_customer_id IS NULL").
		Order("placed_at ASC, id ASC").
		Limit(limit)
	if pos != nil {
		query = query.Where("(placed_at > ?) OR (placed_at = ? AND id > ?)",
			pos.PlacedAt, pos.PlacedAt, pos.OrderID)
	}

	var orderModels []models.OrderModel
	if err := query.Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(orderModels), nil
}

// ListPendingAggregate returns orders whose pending-aggregate marker is still
// raised, oldest first.
func (r *GormOrderRepository) ListPendingAggregate(ctx context.Context, limit int) ([]order.Order, error) {
	var orderModels []models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("pending_aggregate = ?", true).
		Order("updated_at ASC").
		Limit(limit).
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(orderModels), nil
}

// ListUnmapped pages unmapped orders for the review queue, oldest first
func (r *GormOrderRepository) ListUnmapped(ctx context.Context, filter shared.Filter) ([]order.Order, error) {
	query := r.db.WithContext(ctx).
		Where("mapping_customer_id IS NULL").
		Order("placed_at ASC, id ASC")
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var orderModels []models.OrderModel
	if err := query.Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(orderModels), nil
}

// Count counts all orders
func (r *GormOrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountMapped counts orders with an active mapping
func (r *GormOrderRepository) CountMapped(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("mapping_customer_id IS NOT NULL").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountUnmapped counts orders without a mapping
func (r *GormOrderRepository) CountUnmapped(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("mapping_customer_id IS NULL").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountMappedTo counts orders currently mapped to the given customer
func (r *GormOrderRepository) CountMappedTo(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("mapping_customer_id = ?", customerID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func toDomainOrders(orderModels []models.OrderModel) []order.Order {
	orders := make([]order.Order, len(orderModels))
	for i, model := range orderModels {
		orders[i] = *model.ToDomain()
	}
	return orders
}

// Ensure GormOrderRepository implements order.Repository
var _ order.Repository = (*GormOrderRepository)(nil)
