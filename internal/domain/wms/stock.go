// Package wms holds the warehouse-management synchronization model:
// stock levels, sync accounting and webhook events.
package wms

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// InvalidItemMessage is recorded for items that fail shape validation.
const InvalidItemMessage = "Invalid data format"

// UnknownSKU stands in for the SKU of items that carry none.
const UnknownSKU = "unknown"

// StockLevel is one row of the WMS stock feed. Prices are optional and an
// absent price leaves the stored value untouched.
type StockLevel struct {
	SKU      string           `json:"sku"`
	Quantity *int             `json:"quantity"`
	PriceUSD *decimal.Decimal `json:"price_usd,omitempty"`
	PriceEUR *decimal.Decimal `json:"price_eur,omitempty"`

	malformed bool
}

type stockLevelWire struct {
	SKU      json.RawMessage `json:"sku"`
	Quantity json.RawMessage `json:"quantity"`
	PriceUSD json.RawMessage `json:"price_usd"`
	PriceEUR json.RawMessage `json:"price_eur"`
}

// UnmarshalJSON never rejects an item. Numeric strings such as "7" are
// accepted for quantity and prices; a fractional quantity is truncated.
// Anything else marks the item malformed so Validate reports it per item.
func (s *StockLevel) UnmarshalJSON(data []byte) error {
	*s = StockLevel{}
	var w stockLevelWire
	if err := json.Unmarshal(data, &w); err != nil {
		s.malformed = true
		return nil
	}

	s.SKU = decodeSKU(w.SKU)
	var ok bool
	if s.Quantity, ok = decodeQuantity(w.Quantity); !ok {
		s.malformed = true
	}
	if s.PriceUSD, ok = decodePrice(w.PriceUSD); !ok {
		s.malformed = true
	}
	if s.PriceEUR, ok = decodePrice(w.PriceEUR); !ok {
		s.malformed = true
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeSKU(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

func decodeQuantity(raw json.RawMessage) (*int, bool) {
	if isNull(raw) {
		return nil, true
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return nil, false
	}
	q := int(d.IntPart())
	return &q, true
}

func decodePrice(raw json.RawMessage) (*decimal.Decimal, bool) {
	if isNull(raw) {
		return nil, true
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return nil, false
	}
	return &d, true
}

// NormalizedSKU returns the trimmed SKU.
func (s StockLevel) NormalizedSKU() string {
	return strings.TrimSpace(s.SKU)
}

// Validate checks the item carries a SKU and a quantity.
func (s StockLevel) Validate() error {
	if s.malformed || s.NormalizedSKU() == "" || s.Quantity == nil {
		return ErrInvalidItem
	}
	return nil
}

// ErrorSKU is the SKU to report when the item is rejected.
func (s StockLevel) ErrorSKU() string {
	if sku := s.NormalizedSKU(); sku != "" {
		return sku
	}
	return UnknownSKU
}

// ClampQuantity maps negative stock to zero; the WMS reports oversold items
// as negative and the catalog has no backorder concept.
func ClampQuantity(q int) int {
	if q < 0 {
		return 0
	}
	return q
}

// RoundPrice rounds to cents, half away from zero.
func RoundPrice(p *decimal.Decimal) *decimal.Decimal {
	if p == nil {
		return nil
	}
	r := p.Round(2)
	return &r
}

// ItemError describes a single failed item or batch.
type ItemError struct {
	SKU     string `json:"sku,omitempty"`
	Message string `json:"message"`
}

// SyncResult accounts for one BulkSync call.
// Processed counts updated rows, Skipped counts unknown SKUs.
type SyncResult struct {
	Processed int         `json:"processed"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Errors    []ItemError `json:"errors"`
}

// NewSyncResult returns an empty result with a non-nil error list.
func NewSyncResult() *SyncResult {
	return &SyncResult{Errors: make([]ItemError, 0)}
}

// Total is the number of items accounted for.
func (r *SyncResult) Total() int {
	return r.Processed + r.Failed + r.Skipped
}
