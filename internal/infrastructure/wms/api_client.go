// Package wms is the HTTP side of the warehouse-management integration:
// the pull API client and webhook signature checks.
package wms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tenantapp/backend/internal/domain/wms"
	"go.uber.org/zap"
)

const maxResponseSize = 32 << 20

// ClientConfig configures APIClient.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// APIClient pulls stock, products and brands from the WMS.
type APIClient struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAPIClient creates a new APIClient.
func NewAPIClient(cfg ClientConfig, logger *zap.Logger) *APIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &APIClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("wms_client"),
	}
}

type envelope[T any] struct {
	Data []T `json:"data"`
}

// FetchStockLevels returns the full stock feed.
func (c *APIClient) FetchStockLevels(ctx context.Context) ([]wms.StockLevel, error) {
	return fetch[wms.StockLevel](ctx, c, "/stock")
}

// FetchProducts returns the product catalog feed.
func (c *APIClient) FetchProducts(ctx context.Context) ([]wms.ProductFeedItem, error) {
	return fetch[wms.ProductFeedItem](ctx, c, "/products")
}

// FetchBrands returns the brand feed.
func (c *APIClient) FetchBrands(ctx context.Context) ([]wms.BrandFeedItem, error) {
	return fetch[wms.BrandFeedItem](ctx, c, "/brands")
}

func fetch[T any](ctx context.Context, c *APIClient, endpoint string) ([]T, error) {
	raw, status, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		c.logger.Warn("WMS API returned non-success status",
			zap.String("endpoint", endpoint),
			zap.Int("status", status),
		)
		return []T{}, nil
	}

	var env envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", wms.ErrInvalidResponse, endpoint, err)
	}

	// Items decode one by one so a bad row cannot sink the whole feed.
	items := make([]T, 0, len(env.Data))
	for i, rawItem := range env.Data {
		var item T
		if err := json.Unmarshal(rawItem, &item); err != nil {
			c.logger.Warn("Dropping undecodable WMS feed item",
				zap.String("endpoint", endpoint),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *APIClient) doRequest(ctx context.Context, endpoint string) ([]byte, int, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("wms: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", wms.ErrWmsUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", wms.ErrWmsUnavailable, err)
	}
	return body, resp.StatusCode, nil
}
