package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel maps the products table. Stock sync writes only
// StockQuantity, PriceUSD, PriceEUR and StockSyncedAt; the rest is catalog data.
type ProductModel struct {
	BaseModel
	SKU           string           `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name          string           `gorm:"type:varchar(255);not null"`
	Description   string           `gorm:"type:text"`
	OEMCode       string           `gorm:"column:oem_code;type:varchar(100);index"`
	WmsProductID  *string          `gorm:"column:wms_product_id;type:varchar(100);index"`
	BrandID       *uuid.UUID       `gorm:"type:uuid;index"`
	CategoryID    *uuid.UUID       `gorm:"type:uuid;index"`
	StockQuantity int              `gorm:"not null;default:0"`
	PriceUSD      *decimal.Decimal `gorm:"column:price_usd;type:numeric(12,2)"`
	PriceEUR      *decimal.Decimal `gorm:"column:price_eur;type:numeric(12,2)"`
	StockSyncedAt *time.Time
	IsActive      bool `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}
