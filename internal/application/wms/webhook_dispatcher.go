package wms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tenantapp/backend/internal/domain/wms"
	"go.uber.org/zap"
)

// StockUpdater applies single-item stock and price changes.
type StockUpdater interface {
	UpdateStock(ctx context.Context, sku string, quantity int) (bool, error)
	UpdatePrice(ctx context.Context, sku string, priceUSD, priceEUR *decimal.Decimal) (bool, error)
}

// WebhookDispatcherConfig contains configuration for WebhookDispatcher
type WebhookDispatcherConfig struct {
	Stock    StockUpdater
	Runs     wms.SyncRunRepository
	Recorder SyncRecorder
	Logger   *zap.Logger
}

type eventHandler func(ctx context.Context, event wms.WebhookEvent) error

// WebhookDispatcher routes verified webhook events to their handlers.
// Handlers return an error only for infrastructure failures, which makes
// the queue retry the whole event.
type WebhookDispatcher struct {
	stock    StockUpdater
	runs     wms.SyncRunRepository
	recorder SyncRecorder
	logger   *zap.Logger
	handlers map[wms.EventType]eventHandler
}

// NewWebhookDispatcher creates a new WebhookDispatcher
func NewWebhookDispatcher(cfg WebhookDispatcherConfig) *WebhookDispatcher {
	d := &WebhookDispatcher{
		stock:    cfg.Stock,
		runs:     cfg.Runs,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
	d.handlers = map[wms.EventType]eventHandler{
		wms.EventStockUpdated:   d.handleStockUpdated,
		wms.EventPriceUpdated:   d.handlePriceUpdated,
		wms.EventProductCreated: d.handleProductEvent,
		wms.EventProductUpdated: d.handleProductEvent,
	}
	return d
}

// Handle dispatches one event.
func (d *WebhookDispatcher) Handle(ctx context.Context, event wms.WebhookEvent) error {
	handler, ok := d.handlers[event.Type()]
	if !ok {
		d.logger.Warn("Unhandled WMS webhook event", zap.String("event_type", event.EventType))
		return nil
	}
	return handler(ctx, event)
}

type itemsPayload struct {
	Items []json.RawMessage `json:"items"`
}

type tally struct {
	processed int
	failed    int
	skipped   int
	errors    []wms.ItemError
}

func (t *tally) invalid(sku string) {
	if strings.TrimSpace(sku) == "" {
		sku = wms.UnknownSKU
	}
	t.failed++
	t.errors = append(t.errors, wms.ItemError{SKU: sku, Message: wms.InvalidItemMessage})
}

func (t *tally) count(touched bool) {
	if touched {
		t.processed++
	} else {
		t.skipped++
	}
}

func (d *WebhookDispatcher) handleStockUpdated(ctx context.Context, event wms.WebhookEvent) error {
	var payload itemsPayload
	if err := event.DecodeData(&payload); err != nil {
		d.logger.Warn("Malformed stock_updated payload", zap.Error(err))
		return nil
	}

	run := d.startRun(ctx, wms.SyncTypeStock)
	var t tally
	for _, raw := range payload.Items {
		var item wms.StockLevel
		if err := json.Unmarshal(raw, &item); err != nil {
			t.invalid("")
			continue
		}
		if err := item.Validate(); err != nil {
			t.invalid(item.SKU)
			continue
		}
		touched, err := d.stock.UpdateStock(ctx, item.NormalizedSKU(), *item.Quantity)
		if err != nil {
			d.failRun(ctx, run, err)
			return fmt.Errorf("stock_updated %s: %w", item.NormalizedSKU(), err)
		}
		t.count(touched)
	}
	d.completeRun(ctx, run, t)
	return nil
}

func (d *WebhookDispatcher) handlePriceUpdated(ctx context.Context, event wms.WebhookEvent) error {
	var payload itemsPayload
	if err := event.DecodeData(&payload); err != nil {
		d.logger.Warn("Malformed price_updated payload", zap.Error(err))
		return nil
	}

	run := d.startRun(ctx, wms.SyncTypePrice)
	var t tally
	for _, raw := range payload.Items {
		var item wms.PriceUpdate
		if err := json.Unmarshal(raw, &item); err != nil {
			t.invalid("")
			continue
		}
		sku := strings.TrimSpace(item.SKU)
		if sku == "" {
			t.invalid("")
			continue
		}
		touched, err := d.stock.UpdatePrice(ctx, sku, item.PriceUSD, item.PriceEUR)
		if err != nil {
			d.failRun(ctx, run, err)
			return fmt.Errorf("price_updated %s: %w", sku, err)
		}
		t.count(touched)
	}
	d.completeRun(ctx, run, t)
	return nil
}

func (d *WebhookDispatcher) handleProductEvent(_ context.Context, event wms.WebhookEvent) error {
	var data wms.ProductEventData
	_ = event.DecodeData(&data)
	d.logger.Info("WMS product event received",
		zap.String("event_type", event.EventType),
		zap.String("sku", data.SKU),
		zap.String("wms_product_id", data.WmsProductID),
	)
	return nil
}

func (d *WebhookDispatcher) startRun(ctx context.Context, syncType wms.SyncType) *wms.SyncRun {
	run := wms.NewSyncRun(syncType, wms.SyncSourceWebhook)
	if d.runs == nil {
		return run
	}
	if err := d.runs.Create(ctx, run); err != nil {
		d.logger.Warn("Failed to record webhook sync run", zap.Error(err))
		return nil
	}
	return run
}

func (d *WebhookDispatcher) completeRun(ctx context.Context, run *wms.SyncRun, t tally) {
	if d.recorder != nil {
		d.recorder.RecordSyncItems(ctx, t.processed, t.failed, t.skipped)
	}
	if run == nil {
		return
	}
	if err := run.Complete(t.processed, t.failed, t.errors); err != nil {
		return
	}
	d.finishRun(ctx, run)
}

func (d *WebhookDispatcher) failRun(ctx context.Context, run *wms.SyncRun, cause error) {
	if run == nil || run.Fail(cause.Error()) != nil {
		return
	}
	d.finishRun(ctx, run)
}

func (d *WebhookDispatcher) finishRun(ctx context.Context, run *wms.SyncRun) {
	if d.recorder != nil {
		d.recorder.RecordSyncDuration(ctx, string(run.SyncType), string(run.Source), run.Duration())
	}
	if d.runs == nil {
		return
	}
	if err := d.runs.Update(ctx, run); err != nil {
		d.logger.Warn("Failed to update webhook sync run", zap.String("sync_run_id", run.ID.String()), zap.Error(err))
	}
}

