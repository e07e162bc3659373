package persistence

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storelink/backend/internal/domain/customer"
	"github.com/storelink/backend/internal/domain/order"
	"github.com/storelink/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.CustomerModel{}, &models.OrderModel{}))
	return db
}

func seedCustomer(t *testing.T, db *gorm.DB, name, phone string) *customer.Customer {
	t.Helper()
	c, err := customer.NewCustomer(name, phone, "")
	require.NoError(t, err)
	require.NoError(t, NewGormCustomerRepository(db).Save(t.Context(), c))
	return c
}

func seedOrder(t *testing.T, db *gorm.DB, orderNo string, amount int64, placedAt time.Time) *order.Order {
	t.Helper()
	o, err := order.NewOrder(orderNo, "Somchai", "0812345678", decimal.NewFromInt(amount), placedAt)
	require.NoError(t, err)
	require.NoError(t, NewGormOrderRepository(db).Save(t.Context(), o))
	return o
}
