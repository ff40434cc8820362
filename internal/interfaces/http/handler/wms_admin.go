package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantapp/backend/internal/domain/wms"
	"github.com/tenantapp/backend/internal/infrastructure/scheduler"
	"github.com/tenantapp/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// SyncTrigger starts a manual stock sync.
type SyncTrigger interface {
	TriggerNow(ctx context.Context) error
}

// SyncRunReader reads sync audit records.
type SyncRunReader interface {
	FindRecent(ctx context.Context, filter wms.SyncRunFilter) ([]wms.SyncRun, error)
}

// WebhookJobLister lists recently processed webhook jobs.
type WebhookJobLister interface {
	Recent(limit int) []scheduler.WebhookJob
}

// CatalogFeed fetches the WMS catalog feeds.
type CatalogFeed interface {
	FetchProducts(ctx context.Context) ([]wms.ProductFeedItem, error)
	FetchBrands(ctx context.Context) ([]wms.BrandFeedItem, error)
}

// WmsAdminHandlerConfig wires WmsAdminHandler.
type WmsAdminHandlerConfig struct {
	Trigger  SyncTrigger
	SyncRuns SyncRunReader
	Jobs     WebhookJobLister
	Feed     CatalogFeed
	Logger   *zap.Logger
}

// WmsAdminHandler serves the operator endpoints of the WMS integration.
type WmsAdminHandler struct {
	BaseHandler
	trigger  SyncTrigger
	syncRuns SyncRunReader
	jobs     WebhookJobLister
	feed     CatalogFeed
	logger   *zap.Logger
}

// NewWmsAdminHandler creates a new WmsAdminHandler
func NewWmsAdminHandler(cfg WmsAdminHandlerConfig) *WmsAdminHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WmsAdminHandler{
		trigger:  cfg.Trigger,
		syncRuns: cfg.SyncRuns,
		jobs:     cfg.Jobs,
		feed:     cfg.Feed,
		logger:   logger,
	}
}

// TriggerSync godoc
// @Summary      Start a manual stock sync
// @Tags         admin-wms
// @Produce      json
// @Security     BearerAuth
// @Success      202 {object} dto.Response{data=dto.SyncTriggeredResponse}
// @Failure      409 {object} dto.Response
// @Router       /admin/wms/sync [post]
func (h *WmsAdminHandler) TriggerSync(c *gin.Context) {
	if err := h.trigger.TriggerNow(c.Request.Context()); err != nil {
		if !errors.Is(err, wms.ErrSyncAlreadyRunning) {
			h.logger.Error("Failed to trigger stock sync", zap.Error(err))
		}
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.SyncTriggeredResponse{Triggered: true, Message: "Stock sync started"})
}

// ListSyncRuns godoc
// @Summary      Recent sync runs
// @Tags         admin-wms
// @Produce      json
// @Security     BearerAuth
// @Param        limit     query int    false "Max records (1-100)"
// @Param        sync_type query string false "stock, price, products or brands"
// @Param        source    query string false "scheduled, webhook or manual"
// @Success      200 {object} dto.Response{data=[]dto.SyncRunResponse}
// @Router       /admin/wms/sync-runs [get]
func (h *WmsAdminHandler) ListSyncRuns(c *gin.Context) {
	var query dto.SyncRunListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.ValidationError(c, err)
		return
	}
	runs, err := h.syncRuns.FindRecent(c.Request.Context(), query.Filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSyncRunResponses(runs))
}

// ListWebhookJobs godoc
// @Summary      Recent webhook jobs
// @Tags         admin-wms
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Max records (1-100)"
// @Success      200 {object} dto.Response
// @Router       /admin/wms/webhook-jobs [get]
func (h *WmsAdminHandler) ListWebhookJobs(c *gin.Context) {
	var query dto.LimitRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		h.ValidationError(c, err)
		return
	}
	h.Success(c, h.jobs.Recent(query.Resolve()))
}

// FeedProducts godoc
// @Summary      WMS product feed
// @Tags         admin-wms
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.Response{data=[]wms.ProductFeedItem}
// @Failure      502 {object} dto.Response
// @Router       /admin/wms/feed/products [get]
func (h *WmsAdminHandler) FeedProducts(c *gin.Context) {
	items, err := h.feed.FetchProducts(c.Request.Context())
	if err != nil {
		h.upstreamError(c, "products", err)
		return
	}
	h.Success(c, items)
}

// FeedBrands godoc
// @Summary      WMS brand feed
// @Tags         admin-wms
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.Response{data=[]wms.BrandFeedItem}
// @Failure      502 {object} dto.Response
// @Router       /admin/wms/feed/brands [get]
func (h *WmsAdminHandler) FeedBrands(c *gin.Context) {
	items, err := h.feed.FetchBrands(c.Request.Context())
	if err != nil {
		h.upstreamError(c, "brands", err)
		return
	}
	h.Success(c, items)
}

func (h *WmsAdminHandler) upstreamError(c *gin.Context, feed string, err error) {
	h.logger.Warn("WMS feed request failed", zap.String("feed", feed), zap.Error(err))
	if errors.Is(err, wms.ErrWmsUnavailable) {
		h.Error(c, http.StatusBadGateway, dto.ErrCodeUpstreamUnavailable, "Warehouse system is unavailable")
		return
	}
	h.InternalError(c, "Failed to fetch "+feed+" feed")
}
