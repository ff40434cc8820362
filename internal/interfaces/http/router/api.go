package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tenantapp/backend/internal/infrastructure/logger"
	"github.com/tenantapp/backend/internal/interfaces/http/handler"
	"github.com/tenantapp/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers are the endpoint groups served by the API.
type Handlers struct {
	Health   *handler.HealthHandler
	Webhook  *handler.WmsWebhookHandler
	License  *handler.LicenseHandler
	WmsAdmin *handler.WmsAdminHandler
	Update   *handler.UpdateHandler
}

// EngineConfig wires NewEngine.
type EngineConfig struct {
	Handlers Handlers

	Verifier    middleware.TokenVerifier
	License     middleware.LicenseChecker
	Maintenance middleware.MaintenanceChecker

	Logger    *zap.Logger
	Meter     metric.Meter
	Tracing   middleware.TracingConfig
	Profiling middleware.ProfilingConfig
	Security  middleware.SecurityConfig

	MaxWebhookBody int64
	APIVersion     string
}

// NewEngine builds the gin engine with the global middleware chain and all
// routes.
//
//	/health, /ready                    probes
//	/api/v1/wms/webhook                signature-checked, no auth
//	/api/v1/license/status             license guard
//	/api/v1/admin/license/refresh      admin JWT
//	/api/v1/admin/wms/...              admin JWT + license guard
//	/api/v1/admin/updates/...          admin JWT, exempt from maintenance
func NewEngine(cfg EngineConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxWebhookBody <= 0 {
		cfg.MaxWebhookBody = handler.DefaultMaxWebhookBody
	}

	engine := gin.New()
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.SecureWithConfig(cfg.Security),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(cfg.Meter),
		middleware.ProfilingWithConfig(cfg.Profiling),
		logger.GinMiddleware(log),
	)

	opts := []RouterOption{}
	if cfg.APIVersion != "" {
		opts = append(opts, WithAPIVersion(cfg.APIVersion))
	}
	r := NewRouter(engine, opts...)

	maintenance := middleware.DefaultMaintenanceConfig(cfg.Maintenance, log)
	maintenance.ExemptPrefixes = []string{r.BasePath() + "/admin/updates/"}
	engine.Use(middleware.Maintenance(maintenance))

	h := cfg.Handlers
	engine.GET("/health", h.Health.Live)
	engine.GET("/ready", h.Health.Ready)

	licenseGuard := middleware.LicenseGuard(cfg.License, log)

	wmsGroup := NewDomainGroup("wms", "/wms")
	wmsGroup.POST("/webhook", middleware.BodyLimit(cfg.MaxWebhookBody), h.Webhook.Receive)

	licenseGroup := NewDomainGroup("license", "/license").Use(licenseGuard)
	licenseGroup.GET("/status", h.License.Status)

	admin := NewDomainGroup("admin", "/admin").Use(middleware.AdminAuth(cfg.Verifier, log), middleware.SpanAttributes())
	admin.POST("/license/refresh", h.License.Refresh)

	wmsAdmin := admin.Group("admin-wms", "/wms").Use(licenseGuard)
	wmsAdmin.POST("/sync", h.WmsAdmin.TriggerSync)
	wmsAdmin.GET("/sync-runs", h.WmsAdmin.ListSyncRuns)
	wmsAdmin.GET("/webhook-jobs", h.WmsAdmin.ListWebhookJobs)
	wmsAdmin.GET("/feed/products", h.WmsAdmin.FeedProducts)
	wmsAdmin.GET("/feed/brands", h.WmsAdmin.FeedBrands)

	updates := admin.Group("admin-updates", "/updates")
	updates.GET("/check", h.Update.Check)
	updates.POST("/perform", h.Update.Perform)

	r.Register(wmsGroup, licenseGroup, admin).Setup()
	return engine
}
