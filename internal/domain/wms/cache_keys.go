package wms

// Catalog cache keys owned by the storefront. Sync only invalidates them.
const (
	ProductListCachePrefix = "products:"
	ProductCachePrefix     = "product:"
)

// ProductCacheKey is the cache key of a single product page.
func ProductCacheKey(sku string) string {
	return ProductCachePrefix + sku
}
