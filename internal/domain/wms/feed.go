package wms

import "github.com/shopspring/decimal"

// ProductFeedItem is one entry of the WMS /products feed.
type ProductFeedItem struct {
	WmsProductID string           `json:"id"`
	SKU          string           `json:"sku"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	OEMCode      string           `json:"oem_code,omitempty"`
	Brand        string           `json:"brand,omitempty"`
	Category     string           `json:"category,omitempty"`
	Quantity     int              `json:"quantity"`
	PriceUSD     *decimal.Decimal `json:"price_usd,omitempty"`
	PriceEUR     *decimal.Decimal `json:"price_eur,omitempty"`
}

// BrandFeedItem is one entry of the WMS /brands feed.
type BrandFeedItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}
