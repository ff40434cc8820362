package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tenantapp/backend/internal/domain/wms"
	"github.com/tenantapp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductStockRepository writes the sync-owned product columns.
type GormProductStockRepository struct {
	db *gorm.DB
}

// NewGormProductStockRepository creates a new GormProductStockRepository
func NewGormProductStockRepository(db *gorm.DB) *GormProductStockRepository {
	return &GormProductStockRepository{db: db}
}

// ApplyStockLevel writes quantity, any present prices and the sync time in
// one UPDATE. Returns false when no product has the SKU.
func (r *GormProductStockRepository) ApplyStockLevel(ctx context.Context, level wms.StockLevel, syncedAt time.Time) (bool, error) {
	if level.Quantity == nil {
		return false, wms.ErrInvalidItem
	}
	updates := map[string]any{
		"stock_quantity":  wms.ClampQuantity(*level.Quantity),
		"stock_synced_at": syncedAt,
	}
	addPrices(updates, level.PriceUSD, level.PriceEUR)
	return r.update(ctx, level.NormalizedSKU(), updates)
}

// UpdateStock sets the quantity of one product.
func (r *GormProductStockRepository) UpdateStock(ctx context.Context, sku string, quantity int, syncedAt time.Time) (bool, error) {
	return r.update(ctx, sku, map[string]any{
		"stock_quantity":  wms.ClampQuantity(quantity),
		"stock_synced_at": syncedAt,
	})
}

// UpdatePrice sets whichever prices are non-nil and the sync time. With both
// prices nil it touches nothing.
func (r *GormProductStockRepository) UpdatePrice(ctx context.Context, sku string, priceUSD, priceEUR *decimal.Decimal, syncedAt time.Time) (bool, error) {
	updates := map[string]any{}
	addPrices(updates, priceUSD, priceEUR)
	if len(updates) == 0 {
		return false, nil
	}
	updates["stock_synced_at"] = syncedAt
	return r.update(ctx, sku, updates)
}

// InChunk runs fn inside a transaction; fn's error rolls back every write.
func (r *GormProductStockRepository) InChunk(ctx context.Context, fn func(w wms.StockWriter) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormProductStockRepository{db: tx})
	})
}

func (r *GormProductStockRepository) update(ctx context.Context, sku string, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("sku = ?", sku).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update product %s: %w", sku, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func addPrices(updates map[string]any, priceUSD, priceEUR *decimal.Decimal) {
	if p := wms.RoundPrice(priceUSD); p != nil {
		updates["price_usd"] = *p
	}
	if p := wms.RoundPrice(priceEUR); p != nil {
		updates["price_eur"] = *p
	}
}

var _ wms.ProductStockRepository = (*GormProductStockRepository)(nil)
