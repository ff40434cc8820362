package wms

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockWriter mutates the sync-owned columns of a product, addressed by SKU.
// Each method reports whether a product row was touched; an unknown SKU is
// (false, nil).
type StockWriter interface {
	ApplyStockLevel(ctx context.Context, level StockLevel, syncedAt time.Time) (bool, error)
	UpdateStock(ctx context.Context, sku string, quantity int, syncedAt time.Time) (bool, error)
	UpdatePrice(ctx context.Context, sku string, priceUSD, priceEUR *decimal.Decimal, syncedAt time.Time) (bool, error)
}

// ProductStockRepository is the product store used by stock sync.
type ProductStockRepository interface {
	StockWriter
	// InChunk runs fn in one transaction. Returning an error rolls back
	// every write made through the StockWriter passed to fn.
	InChunk(ctx context.Context, fn func(w StockWriter) error) error
}

// SyncRunRepository stores sync audit records.
type SyncRunRepository interface {
	Create(ctx context.Context, run *SyncRun) error
	Update(ctx context.Context, run *SyncRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)
	FindRecent(ctx context.Context, filter SyncRunFilter) ([]SyncRun, error)
}

// SyncRunFilter narrows FindRecent. Zero values mean no restriction.
type SyncRunFilter struct {
	SyncType SyncType
	Source   SyncSource
	Limit    int
}
