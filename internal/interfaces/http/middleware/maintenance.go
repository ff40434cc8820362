package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tenantapp/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// MaintenanceChecker reports whether maintenance mode is on.
type MaintenanceChecker interface {
	IsEnabled(ctx context.Context) (bool, error)
}

// MaintenanceConfig holds the maintenance guard settings.
type MaintenanceConfig struct {
	Checker        MaintenanceChecker
	Logger         *zap.Logger
	ExemptPaths    []string
	ExemptPrefixes []string
	RetryAfter     string // seconds
}

// DefaultMaintenanceConfig exempts the probes and the update endpoints,
// which must stay reachable while an update runs.
func DefaultMaintenanceConfig(checker MaintenanceChecker, logger *zap.Logger) MaintenanceConfig {
	return MaintenanceConfig{
		Checker:        checker,
		Logger:         logger,
		ExemptPaths:    []string{"/health", "/ready"},
		ExemptPrefixes: []string{"/api/v1/admin/updates/"},
		RetryAfter:     "60",
	}
}

// Maintenance answers 503 while maintenance mode is on. A failing flag
// lookup lets the request through.
func Maintenance(cfg MaintenanceConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if slices.Contains(cfg.ExemptPaths, path) {
			c.Next()
			return
		}
		for _, prefix := range cfg.ExemptPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		on, err := cfg.Checker.IsEnabled(c.Request.Context())
		if err != nil {
			cfg.Logger.Warn("Maintenance flag lookup failed", zap.Error(err))
			c.Next()
			return
		}
		if on {
			if cfg.RetryAfter != "" {
				c.Header("Retry-After", cfg.RetryAfter)
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeMaintenance,
				"Service is under maintenance, please retry shortly",
				GetRequestID(c),
			))
			return
		}
		c.Next()
	}
}
