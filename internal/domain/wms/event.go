package wms

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// EventType is the closed set of webhook events the WMS sends.
type EventType string

const (
	EventStockUpdated   EventType = "stock_updated"
	EventPriceUpdated   EventType = "price_updated"
	EventProductCreated EventType = "product_created"
	EventProductUpdated EventType = "product_updated"
	EventUnknown        EventType = "unknown"
)

// ParseEventType maps a raw event name onto the enum; anything else is EventUnknown.
func ParseEventType(s string) EventType {
	switch t := EventType(s); t {
	case EventStockUpdated, EventPriceUpdated, EventProductCreated, EventProductUpdated:
		return t
	}
	return EventUnknown
}

// WebhookEvent is a verified webhook envelope. Data stays raw until the
// handler for the event type decodes it.
type WebhookEvent struct {
	EventType string          `json:"event_type" binding:"required"`
	Data      json.RawMessage `json:"data"`
}

// Type returns the parsed event type.
func (e WebhookEvent) Type() EventType {
	return ParseEventType(e.EventType)
}

// StockUpdatedData is the payload of stock_updated.
type StockUpdatedData struct {
	Items []StockLevel `json:"items"`
}

// PriceUpdate is one item of price_updated. Either price may be absent.
type PriceUpdate struct {
	SKU      string           `json:"sku"`
	PriceUSD *decimal.Decimal `json:"price_usd"`
	PriceEUR *decimal.Decimal `json:"price_eur"`
}

// PriceUpdatedData is the payload of price_updated.
type PriceUpdatedData struct {
	Items []PriceUpdate `json:"items"`
}

// ProductEventData is the payload of product_created and product_updated.
type ProductEventData struct {
	SKU          string `json:"sku"`
	WmsProductID string `json:"wms_product_id"`
}

// DecodeData unmarshals the event payload into v. An absent payload decodes
// to the zero value.
func (e WebhookEvent) DecodeData(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}
