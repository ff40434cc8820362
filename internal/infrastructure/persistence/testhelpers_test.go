package persistence

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tenantapp/backend/internal/infrastructure/persistence/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newSQLiteDB opens a private in-memory database with the service tables.
// A single connection keeps every query on the same memory database.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.ProductModel{}, &models.SyncRunModel{}, &models.LicenseRecordModel{}))
	return db
}

// newMockDB returns a gorm handle over go-sqlmock with the postgres dialect.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func seedProduct(t *testing.T, db *gorm.DB, sku string, qty int, usd, eur string) models.ProductModel {
	t.Helper()
	p := models.ProductModel{
		BaseModel:     models.BaseModel{ID: uuid.New()},
		SKU:           sku,
		Name:          "Product " + sku,
		StockQuantity: qty,
		IsActive:      true,
	}
	if usd != "" {
		v := decimal.RequireFromString(usd)
		p.PriceUSD = &v
	}
	if eur != "" {
		v := decimal.RequireFromString(eur)
		p.PriceEUR = &v
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func loadProduct(t *testing.T, db *gorm.DB, sku string) models.ProductModel {
	t.Helper()
	var p models.ProductModel
	require.NoError(t, db.Where("sku = ?", sku).First(&p).Error)
	return p
}
