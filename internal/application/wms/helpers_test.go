package wms

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tenantapp/backend/internal/infrastructure/cache"
	"github.com/tenantapp/backend/internal/infrastructure/persistence"
	"github.com/tenantapp/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

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

	require.NoError(t, db.AutoMigrate(&models.ProductModel{}, &models.SyncRunModel{}))
	return db
}

func newCache(t *testing.T) *cache.InMemoryCache {
	t.Helper()
	c := cache.NewInMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type testEnv struct {
	db      *gorm.DB
	cache   *cache.InMemoryCache
	service *StockSyncService
	runs    *persistence.GormSyncRunRepository
	now     time.Time
}

func newTestEnv(t *testing.T, batchSize int) *testEnv {
	t.Helper()
	env := &testEnv{
		db:    newSQLiteDB(t),
		cache: newCache(t),
		now:   time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	env.service = NewStockSyncService(StockSyncServiceConfig{
		Repo:      persistence.NewGormProductStockRepository(env.db),
		Cache:     env.cache,
		BatchSize: batchSize,
		Logger:    zap.NewNop(),
	})
	env.service.now = func() time.Time { return env.now }
	env.runs = persistence.NewGormSyncRunRepository(env.db)
	return env
}

func (e *testEnv) seed(t *testing.T, sku string, qty int, usd, eur string) {
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
	require.NoError(t, e.db.Create(&p).Error)
}

func (e *testEnv) load(t *testing.T, sku string) models.ProductModel {
	t.Helper()
	var p models.ProductModel
	require.NoError(t, e.db.Where("sku = ?", sku).First(&p).Error)
	return p
}

func (e *testEnv) cached(key string) bool {
	_, found, _ := e.cache.Get(context.Background(), key)
	return found
}

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
