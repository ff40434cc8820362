package update

import (
	"context"
	"errors"
	"fmt"

	"github.com/tenantapp/backend/internal/domain/license"
	"github.com/tenantapp/backend/internal/domain/shared"
	"github.com/tenantapp/backend/internal/domain/wms"
	"go.uber.org/zap"
)

// CacheRebuilder drops the caches an update can make stale: product pages,
// product lists and the license verdict. They refill on the next read.
type CacheRebuilder struct {
	cache    shared.Cache
	prefixes []string
	logger   *zap.Logger
}

// NewCacheRebuilder creates a new CacheRebuilder.
func NewCacheRebuilder(cache shared.Cache, logger *zap.Logger) *CacheRebuilder {
	return &CacheRebuilder{
		cache: cache,
		prefixes: []string{
			wms.ProductListCachePrefix,
			wms.ProductCachePrefix,
			license.StatusKeyPrefix,
		},
		logger: logger,
	}
}

// Rebuild flushes every prefix and returns the number of keys removed.
// It keeps going after a failed prefix and reports all failures together.
func (r *CacheRebuilder) Rebuild(ctx context.Context) (int64, error) {
	var total int64
	var errs []error
	for _, prefix := range r.prefixes {
		n, err := r.cache.DeletePrefix(ctx, prefix)
		if err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", prefix, err))
			continue
		}
		total += n
	}
	r.logger.Info("Caches flushed after update", zap.Int64("keys_removed", total))
	return total, errors.Join(errs...)
}
