package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tenantapp/backend/internal/domain/license"
	"github.com/tenantapp/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// License guard keys and headers
const (
	LicenseStatusKey   = "license_status"
	LicenseGraceHeader = "X-License-Grace-Until"
)

// LicenseChecker is the license gate as seen by HTTP.
type LicenseChecker interface {
	Check(ctx context.Context) (*license.StatusRecord, error)
	RenewURL() string
}

// LicenseRequiredData is the body data of a 402.
type LicenseRequiredData struct {
	Status    license.Status `json:"status"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Message   string         `json:"message,omitempty"`
	RenewURL  string         `json:"renew_url,omitempty"`
}

// LicenseGuard lets a request through only on a VALID or GRACE_PERIOD
// decision. Grace responses carry the grace deadline in a header.
func LicenseGuard(checker LicenseChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := checker.Check(c.Request.Context())
		if err != nil {
			logger.Error("License check failed", zap.Error(err), zap.String("request_id", GetRequestID(c)))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeServiceUnavailable, "License status unavailable", GetRequestID(c)))
			return
		}

		switch rec.Decision() {
		case license.DecisionValid:
		case license.DecisionGrace:
			logger.Warn("License in grace period",
				zap.Timep("grace_until", rec.GraceUntil),
				zap.String("path", c.FullPath()),
				zap.String("request_id", GetRequestID(c)),
			)
			if rec.GraceUntil != nil {
				c.Header(LicenseGraceHeader, rec.GraceUntil.UTC().Format(time.RFC3339))
			}
		default:
			c.AbortWithStatusJSON(http.StatusPaymentRequired, dto.NewErrorResponseWithData(
				dto.ErrCodeLicenseRequired,
				license.ErrLicenseBlocked.Message,
				LicenseRequiredData{
					Status:    rec.Status,
					ExpiresAt: rec.ExpiresAt,
					Message:   rec.Message,
					RenewURL:  checker.RenewURL(),
				},
			))
			return
		}

		c.Set(LicenseStatusKey, rec)
		c.Next()
	}
}

// GetLicenseStatus returns the record set by LicenseGuard, or nil.
func GetLicenseStatus(c *gin.Context) *license.StatusRecord {
	if v, ok := c.Get(LicenseStatusKey); ok {
		if rec, ok := v.(*license.StatusRecord); ok {
			return rec
		}
	}
	return nil
}
