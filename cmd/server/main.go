package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	licenseapp "github.com/tenantapp/backend/internal/application/license"
	updateapp "github.com/tenantapp/backend/internal/application/update"
	wmsapp "github.com/tenantapp/backend/internal/application/wms"
	"github.com/tenantapp/backend/internal/infrastructure/auth"
	"github.com/tenantapp/backend/internal/infrastructure/cache"
	"github.com/tenantapp/backend/internal/infrastructure/config"
	licenseinfra "github.com/tenantapp/backend/internal/infrastructure/license"
	"github.com/tenantapp/backend/internal/infrastructure/logger"
	"github.com/tenantapp/backend/internal/infrastructure/migration"
	"github.com/tenantapp/backend/internal/infrastructure/persistence"
	"github.com/tenantapp/backend/internal/infrastructure/scheduler"
	"github.com/tenantapp/backend/internal/infrastructure/telemetry"
	updateinfra "github.com/tenantapp/backend/internal/infrastructure/update"
	wmsinfra "github.com/tenantapp/backend/internal/infrastructure/wms"
	"github.com/tenantapp/backend/internal/interfaces/http/handler"
	"github.com/tenantapp/backend/internal/interfaces/http/middleware"
	"github.com/tenantapp/backend/internal/interfaces/http/router"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
)

//	@title			Tenant Backend API
//	@version		1.0
//	@description	License gate, WMS stock synchronization and self-update for a single tenant deployment.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Admin bearer token. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	bootLog, err := logger.New(loggerConfig(cfg))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	obs, log, err := setupTelemetry(ctx, cfg, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting tenant backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("port", cfg.App.Port),
	)

	// Databases
	dbOpts := []persistence.Option{
		persistence.WithLogger(log),
		persistence.WithSlowQueryThreshold(cfg.Telemetry.DBSlowQueryThresh),
		persistence.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbOpts = append(dbOpts, persistence.WithTracing(telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBName:          cfg.Database.DBName,
		}, log)))
	}

	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	auditDB := db
	if cfg.Database.AuditDSN != "" {
		auditDB, err = persistence.Open(cfg.Database.AuditDSN, &cfg.Database, dbOpts...)
		if err != nil {
			log.Fatal("Failed to connect to audit database", zap.Error(err))
		}
		log.Info("Audit database connected successfully")
	}

	// golang-migrate closes the connection it is handed, so it gets its own.
	migrationDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open migration connection", zap.Error(err))
	}
	migrator, err := migration.New(migrationDB, cfg.Update.MigrationsPath, log.Named("migrate"))
	if err != nil {
		log.Fatal("Failed to initialize migrator", zap.Error(err))
	}

	// Shared cache and lease store
	store, err := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
		cache.WithPrefix(cfg.App.Name+":"),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}

	// Repositories
	productRepo := persistence.NewGormProductStockRepository(db.DB)
	syncRunRepo := persistence.NewGormSyncRunRepository(auditDB.DB)
	mirrorRepo := persistence.NewGormLicenseMirrorRepository(db.DB)

	// License gate
	gate := licenseapp.NewGate(licenseapp.GateConfig{
		Provider: licenseinfra.NewProviderClient(licenseinfra.ProviderConfig{
			BaseURL:    cfg.License.ProviderURL,
			Endpoint:   cfg.License.ValidationEndpoint,
			Format:     cfg.License.ResponseFormat,
			Timeout:    cfg.License.Timeout,
			AppVersion: cfg.App.Version,
		}, log),
		Cache:            store,
		Mirror:           mirrorRepo,
		Recorder:         obs.metrics,
		Logger:           log.Named("license"),
		LicenseKey:       cfg.License.Key,
		Domain:           cfg.App.Domain,
		CacheTTL:         cfg.License.CacheTTL,
		NegativeCacheTTL: cfg.License.NegativeCacheTTL,
		SnapshotTTL:      cfg.License.SnapshotTTL,
		GracePeriod:      cfg.License.GracePeriod,
		RenewURL:         cfg.License.RenewURL,
	})

	// WMS integration
	wmsClient := wmsinfra.NewAPIClient(wmsinfra.ClientConfig{
		BaseURL: cfg.WMS.APIURL,
		APIKey:  cfg.WMS.APIKey,
		Timeout: cfg.WMS.Timeout,
	}, log)
	syncService := wmsapp.NewStockSyncService(wmsapp.StockSyncServiceConfig{
		Repo:      productRepo,
		Cache:     store,
		Recorder:  obs.metrics,
		BatchSize: cfg.WMS.BatchSize,
		Logger:    log.Named("stock_sync"),
	})
	syncJob := wmsapp.NewStockSyncJob(wmsapp.StockSyncJobConfig{
		Feed:     wmsClient,
		Syncer:   syncService,
		Runs:     syncRunRepo,
		Recorder: obs.metrics,
		Logger:   log.Named("stock_sync_job"),
	})
	dispatcher := wmsapp.NewWebhookDispatcher(wmsapp.WebhookDispatcherConfig{
		Stock:    syncService,
		Runs:     syncRunRepo,
		Recorder: obs.metrics,
		Logger:   log.Named("wms_webhook"),
	})

	queueCfg := scheduler.DefaultWebhookQueueConfig()
	if cfg.WMS.WebhookWorkers > 0 {
		queueCfg.Workers = cfg.WMS.WebhookWorkers
	}
	if cfg.WMS.WebhookQueueSize > 0 {
		queueCfg.QueueSize = cfg.WMS.WebhookQueueSize
	}
	if cfg.WMS.WebhookTries > 0 {
		queueCfg.MaxAttempts = cfg.WMS.WebhookTries
	}
	if cfg.WMS.WebhookBackoff > 0 {
		queueCfg.Backoff = cfg.WMS.WebhookBackoff
	}
	webhookQueue, err := scheduler.NewWebhookQueue(queueCfg, dispatcher, log, scheduler.WithOutcomeRecorder(obs.metrics))
	if err != nil {
		log.Fatal("Failed to create webhook queue", zap.Error(err))
	}

	triggerCfg := scheduler.DefaultStockSyncTriggerConfig()
	triggerCfg.Enabled = cfg.WMS.SyncEnabled
	if cfg.WMS.SyncInterval > 0 {
		triggerCfg.Interval = cfg.WMS.SyncInterval
	}
	if cfg.WMS.LockTTL > 0 {
		triggerCfg.LockTTL = cfg.WMS.LockTTL
	}
	if cfg.WMS.RetryAttempts > 0 {
		triggerCfg.RetryAttempts = cfg.WMS.RetryAttempts
	}
	if cfg.WMS.RetryDelay > 0 {
		triggerCfg.RetryDelay = cfg.WMS.RetryDelay
	}
	syncTrigger := scheduler.NewStockSyncTrigger(triggerCfg, syncJob, store, log)

	// Self-update
	maintenance := updateinfra.NewMaintenance(store)
	orchestrator := updateapp.NewOrchestrator(updateapp.OrchestratorConfig{
		Git:            updateinfra.NewGitRepository(cfg.Update.RepoDir),
		Runner:         updateinfra.NewExecRunner(),
		Maintenance:    maintenance,
		Migrator:       migrator,
		Rebuilder:      updateinfra.NewCacheRebuilder(store, log),
		Recorder:       obs.metrics,
		Logger:         log.Named("update"),
		RepoDir:        cfg.Update.RepoDir,
		Remote:         cfg.Update.Remote,
		Branch:         cfg.Update.Branch,
		LockFile:       cfg.Update.LockFile,
		InstallCommand: cfg.Update.InstallCommand,
		PullTimeout:    cfg.Update.PullTimeout,
		InstallTimeout: cfg.Update.InstallTimeout,
	})

	// Background workers
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	if err := webhookQueue.Start(workerCtx); err != nil {
		log.Fatal("Failed to start webhook queue", zap.Error(err))
	}
	if err := syncTrigger.Start(workerCtx); err != nil {
		log.Fatal("Failed to start stock sync trigger", zap.Error(err))
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}
	engine := router.NewEngine(router.EngineConfig{
		Handlers: router.Handlers{
			Health: handler.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handler.Pinger{
				"database": db,
				"cache":    store,
			}, log),
			Webhook: handler.NewWmsWebhookHandler(handler.WmsWebhookHandlerConfig{
				Verifier: wmsinfra.NewSignatureVerifier(log),
				Queue:    webhookQueue,
				Secret:   cfg.WMS.WebhookSecret,
				MaxBody:  cfg.WMS.MaxWebhookBody,
				Logger:   log,
			}),
			License: handler.NewLicenseHandler(gate, log),
			WmsAdmin: handler.NewWmsAdminHandler(handler.WmsAdminHandlerConfig{
				Trigger:  syncTrigger,
				SyncRuns: syncRunRepo,
				Jobs:     webhookQueue,
				Feed:     wmsClient,
				Logger:   log,
			}),
			Update: handler.NewUpdateHandler(orchestrator, log),
		},
		Verifier:    auth.NewAdminTokenVerifier(cfg.JWT),
		License:     gate,
		Maintenance: maintenance,
		Logger:      log,
		Meter:       obs.meter.Meter(serviceName),
		Tracing: middleware.TracingConfig{
			ServiceName: serviceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Profiling: middleware.ProfilingConfig{
			Enabled:   cfg.Telemetry.ProfilingEnabled,
			SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
		},
		Security: middleware.SecurityConfig{
			HSTSEnabled: cfg.IsProduction(),
			HSTSMaxAge:  middleware.DefaultSecurityConfig().HSTSMaxAge,
		},
		MaxWebhookBody: cfg.WMS.MaxWebhookBody,
	})
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := syncTrigger.Stop(shutdownCtx); err != nil {
		log.Error("Stock sync trigger did not stop cleanly", zap.Error(err))
	}
	if err := webhookQueue.Stop(shutdownCtx); err != nil {
		log.Error("Webhook queue did not drain", zap.Error(err))
	}
	cancelWorkers()

	if err := obs.shutdown(shutdownCtx); err != nil {
		log.Error("Telemetry shutdown failed", zap.Error(err))
	}
	if err := migrator.Close(); err != nil {
		log.Error("Error closing migrator", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing cache", zap.Error(err))
	}
	if auditDB != db {
		if err := auditDB.Close(); err != nil {
			log.Error("Error closing audit database", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
