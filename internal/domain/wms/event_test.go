package wms

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	assert.Equal(t, EventStockUpdated, ParseEventType("stock_updated"))
	assert.Equal(t, EventPriceUpdated, ParseEventType("price_updated"))
	assert.Equal(t, EventProductCreated, ParseEventType("product_created"))
	assert.Equal(t, EventProductUpdated, ParseEventType("product_updated"))
	assert.Equal(t, EventUnknown, ParseEventType("order_shipped"))
	assert.Equal(t, EventUnknown, ParseEventType(""))
}

func TestWebhookEvent_DecodeData(t *testing.T) {
	t.Run("stock payload", func(t *testing.T) {
		var ev WebhookEvent
		require.NoError(t, json.Unmarshal([]byte(`{"event_type":"stock_updated","data":{"items":[{"sku":"X1","quantity":7}]}}`), &ev))

		var data StockUpdatedData
		require.NoError(t, ev.DecodeData(&data))
		require.Len(t, data.Items, 1)
		assert.Equal(t, "X1", data.Items[0].SKU)
		assert.Equal(t, 7, *data.Items[0].Quantity)
	})

	t.Run("price payload keeps absent price nil", func(t *testing.T) {
		ev := WebhookEvent{EventType: "price_updated", Data: json.RawMessage(`{"items":[{"sku":"P","price_usd":"12.5"}]}`)}

		var data PriceUpdatedData
		require.NoError(t, ev.DecodeData(&data))
		require.Len(t, data.Items, 1)
		assert.Equal(t, "12.5", data.Items[0].PriceUSD.String())
		assert.Nil(t, data.Items[0].PriceEUR)
	})

	t.Run("missing payload is zero value", func(t *testing.T) {
		ev := WebhookEvent{EventType: "stock_updated"}
		var data StockUpdatedData
		require.NoError(t, ev.DecodeData(&data))
		assert.Empty(t, data.Items)
	})

	t.Run("malformed payload errors", func(t *testing.T) {
		ev := WebhookEvent{EventType: "stock_updated", Data: json.RawMessage(`{"items":"nope"}`)}
		var data StockUpdatedData
		assert.Error(t, ev.DecodeData(&data))
	})
}
