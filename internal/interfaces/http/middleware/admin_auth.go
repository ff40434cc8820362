package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tenantapp/backend/internal/infrastructure/auth"
	"github.com/tenantapp/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Admin auth context keys and header values
const (
	AdminClaimsKey = "admin_claims"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

// TokenVerifier validates admin bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AdminAuth requires a bearer token carrying the admin role.
func AdminAuth(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			abortAuth(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			abortAuth(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			logger.Warn("Admin authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", GetRequestID(c)),
			)
			switch {
			case errors.Is(err, auth.ErrForbidden):
				abortAuth(c, http.StatusForbidden, dto.ErrCodeForbidden, "Admin role required")
			case errors.Is(err, auth.ErrExpiredToken):
				abortAuth(c, http.StatusUnauthorized, dto.ErrCodeTokenExpired, "Token has expired")
			default:
				abortAuth(c, http.StatusUnauthorized, dto.ErrCodeTokenInvalid, "Invalid token")
			}
			return
		}

		c.Set(AdminClaimsKey, claims)
		c.Next()
	}
}

func abortAuth(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetAdminClaims returns the claims set by AdminAuth, or nil.
func GetAdminClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(AdminClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
