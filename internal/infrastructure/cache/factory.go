package cache

import (
	"fmt"
	"time"

	"github.com/tenantapp/backend/internal/domain/shared"
	"github.com/tenantapp/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Store is both a cache and a lease locker.
type Store interface {
	shared.Cache
	shared.Locker
}

// Factory creates the shared cache store from configuration
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	keyPrefix             string
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-process store. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithPrefix namespaces all keys written through Redis.
func WithPrefix(prefix string) FactoryOption {
	return func(f *Factory) {
		f.keyPrefix = prefix
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore connects to Redis, falling back to memory when allowed. Locks
// held in memory only protect a single instance.
func (f *Factory) CreateStore() (Store, error) {
	start := time.Now()
	store, err := NewRedisCache(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, WithKeyPrefix(f.keyPrefix))
	if err == nil {
		f.logger.Info("Using Redis cache", zap.String("addr", f.redisConfig.Addr()), zap.Duration("connect", time.Since(start)))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory cache. "+
		"Sync locks will not be shared across instances.",
		zap.Error(err),
	)
	return NewInMemoryCache(), nil
}
