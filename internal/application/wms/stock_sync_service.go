// Package wms applies warehouse stock and price data to the catalog.
package wms

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tenantapp/backend/internal/domain/shared"
	"github.com/tenantapp/backend/internal/domain/wms"
	"go.uber.org/zap"
)

// DefaultBatchSize is the chunk size used when none is configured.
const DefaultBatchSize = 100

// SyncRecorder counts synced items and run durations.
type SyncRecorder interface {
	RecordSyncItems(ctx context.Context, processed, failed, skipped int)
	RecordSyncDuration(ctx context.Context, syncType, source string, d time.Duration)
}

// StockSyncServiceConfig contains configuration for StockSyncService
type StockSyncServiceConfig struct {
	Repo      wms.ProductStockRepository
	Cache     shared.Cache
	Recorder  SyncRecorder
	BatchSize int
	Logger    *zap.Logger
}

// StockSyncService writes WMS stock levels and prices onto products by SKU.
type StockSyncService struct {
	repo      wms.ProductStockRepository
	cache     shared.Cache
	recorder  SyncRecorder
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// NewStockSyncService creates a new StockSyncService
func NewStockSyncService(cfg StockSyncServiceConfig) *StockSyncService {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &StockSyncService{
		repo:      cfg.Repo,
		cache:     cfg.Cache,
		recorder:  cfg.Recorder,
		batchSize: batch,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

type chunkTally struct {
	processed int
	failed    int
	skipped   int
	errors    []wms.ItemError
}

// BulkSync applies items in chunks, one transaction per chunk. A failed
// chunk is rolled back and counted as failed as a whole; later chunks
// still run. The product list caches are flushed once at the end.
func (s *StockSyncService) BulkSync(ctx context.Context, items []wms.StockLevel) *wms.SyncResult {
	result := wms.NewSyncResult()
	syncedAt := s.now()

	for start := 0; start < len(items); start += s.batchSize {
		end := min(start+s.batchSize, len(items))
		chunk := items[start:end]

		var tally chunkTally
		err := s.repo.InChunk(ctx, func(w wms.StockWriter) error {
			tally = chunkTally{}
			for _, item := range chunk {
				if err := item.Validate(); err != nil {
					tally.failed++
					tally.errors = append(tally.errors, wms.ItemError{SKU: item.ErrorSKU(), Message: wms.InvalidItemMessage})
					continue
				}
				touched, err := w.ApplyStockLevel(ctx, item, syncedAt)
				if err != nil {
					return err
				}
				if touched {
					tally.processed++
				} else {
					tally.skipped++
					s.logger.Debug("Skipping stock for unknown SKU", zap.String("sku", item.NormalizedSKU()))
				}
			}
			return nil
		})

		if err != nil {
			result.Failed += len(chunk)
			result.Errors = append(result.Errors, wms.ItemError{Message: fmt.Sprintf("Batch failed: %v", err)})
			s.logger.Error("Stock sync chunk rolled back",
				zap.Int("offset", start),
				zap.Int("size", len(chunk)),
				zap.Error(err),
			)
			continue
		}

		result.Processed += tally.processed
		result.Failed += tally.failed
		result.Skipped += tally.skipped
		result.Errors = append(result.Errors, tally.errors...)
	}

	if _, err := s.cache.DeletePrefix(ctx, wms.ProductListCachePrefix); err != nil {
		s.logger.Warn("Failed to flush product list cache", zap.Error(err))
	}

	if s.recorder != nil {
		s.recorder.RecordSyncItems(ctx, result.Processed, result.Failed, result.Skipped)
	}

	s.logger.Info("Bulk stock sync finished",
		zap.Int("items", len(items)),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result
}

// UpdateStock sets one product's quantity. It returns false for an unknown SKU.
func (s *StockSyncService) UpdateStock(ctx context.Context, sku string, quantity int) (bool, error) {
	touched, err := s.repo.UpdateStock(ctx, sku, quantity, s.now())
	if err != nil {
		return false, err
	}
	if !touched {
		s.logger.Info("Stock update for unknown SKU ignored", zap.String("sku", sku))
		return false, nil
	}
	s.invalidate(ctx, sku)
	return true, nil
}

// UpdatePrice sets whichever prices are given. It returns false for an
// unknown SKU or when both prices are nil.
func (s *StockSyncService) UpdatePrice(ctx context.Context, sku string, priceUSD, priceEUR *decimal.Decimal) (bool, error) {
	if priceUSD == nil && priceEUR == nil {
		s.logger.Debug("Price update without prices ignored", zap.String("sku", sku))
		return false, nil
	}
	touched, err := s.repo.UpdatePrice(ctx, sku, priceUSD, priceEUR, s.now())
	if err != nil {
		return false, err
	}
	if !touched {
		s.logger.Info("Price update for unknown SKU ignored", zap.String("sku", sku))
		return false, nil
	}
	s.invalidate(ctx, sku)
	return true, nil
}

func (s *StockSyncService) invalidate(ctx context.Context, sku string) {
	if err := s.cache.Delete(ctx, wms.ProductCacheKey(sku)); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.String("sku", sku), zap.Error(err))
	}
}
