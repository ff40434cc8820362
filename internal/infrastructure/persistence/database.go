// Package persistence implements the domain repositories on gorm.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/tenantapp/backend/internal/infrastructure/config"
	"github.com/tenantapp/backend/internal/infrastructure/logger"
	"github.com/tenantapp/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

type options struct {
	zapLogger     *zap.Logger
	slowThreshold time.Duration
	fullSQL       bool
	tracing       *telemetry.DBTracingPlugin
}

// Option configures NewDatabase.
type Option func(*options)

// WithLogger routes gorm logs through zap at the configured database log level.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.zapLogger = l
	}
}

// WithSlowQueryThreshold sets when a statement is logged as slow.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(o *options) {
		o.slowThreshold = d
	}
}

// WithFullSQL logs statements with their bound values.
func WithFullSQL(enabled bool) Option {
	return func(o *options) {
		o.fullSQL = enabled
	}
}

// WithTracing registers the otelgorm plugin on the connection.
func WithTracing(p *telemetry.DBTracingPlugin) Option {
	return func(o *options) {
		o.tracing = p
	}
}

// NewDatabase opens the main postgres connection described by cfg.
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	return Open(cfg.DSN(), cfg, opts...)
}

// Open connects to dsn using the pool settings from cfg. It is also used for
// the sync audit database when database.audit_dsn is set.
func Open(dsn string, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := options{slowThreshold: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}
	if o.zapLogger != nil {
		gormCfg.Logger = logger.NewGormLogger(o.zapLogger, logger.MapGormLogLevel(cfg.LogLevel),
			logger.WithSlowThreshold(o.slowThreshold),
			logger.WithFullSQL(o.fullSQL),
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if o.tracing != nil {
		if err := o.tracing.RegisterOtelGorm(db); err != nil {
			return nil, fmt.Errorf("failed to register database tracing: %w", err)
		}
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// Stats returns connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// Transaction executes a function within a database transaction
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.DB.Transaction(fn)
}
