package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tenantapp/backend/internal/domain/license"
	"github.com/tenantapp/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// LicenseGate is the license gate as used by the handlers.
type LicenseGate interface {
	Check(ctx context.Context) (*license.StatusRecord, error)
	Refresh(ctx context.Context) (*license.StatusRecord, error)
	RenewURL() string
}

// LicenseHandler exposes the license gate state.
type LicenseHandler struct {
	BaseHandler
	gate   LicenseGate
	logger *zap.Logger
}

// NewLicenseHandler creates a new LicenseHandler
func NewLicenseHandler(gate LicenseGate, logger *zap.Logger) *LicenseHandler {
	return &LicenseHandler{gate: gate, logger: logger}
}

// LicenseStatusResponse is the license state returned to clients.
type LicenseStatusResponse struct {
	Status     license.Status   `json:"status"`
	Decision   license.Decision `json:"decision"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`
	GraceUntil *time.Time       `json:"grace_until,omitempty"`
	CheckedAt  time.Time        `json:"checked_at"`
	Message    string           `json:"message,omitempty"`
	RenewURL   string           `json:"renew_url,omitempty"`
}

func (h *LicenseHandler) toResponse(rec *license.StatusRecord) LicenseStatusResponse {
	resp := LicenseStatusResponse{
		Status:     rec.Status,
		Decision:   rec.Decision(),
		ExpiresAt:  rec.ExpiresAt,
		GraceUntil: rec.GraceUntil,
		CheckedAt:  rec.CheckedAt,
		Message:    rec.Message,
	}
	if resp.Decision != license.DecisionValid {
		resp.RenewURL = h.gate.RenewURL()
	}
	return resp
}

// Status godoc
// @Summary      Current license decision
// @Tags         license
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      402 {object} dto.Response
// @Router       /license/status [get]
func (h *LicenseHandler) Status(c *gin.Context) {
	rec := middleware.GetLicenseStatus(c)
	if rec == nil {
		var err error
		if rec, err = h.gate.Check(c.Request.Context()); err != nil {
			h.HandleError(c, err)
			return
		}
	}
	h.Success(c, h.toResponse(rec))
}

// Refresh godoc
// @Summary      Forget the cached license status and validate again
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.Response
// @Router       /admin/license/refresh [post]
func (h *LicenseHandler) Refresh(c *gin.Context) {
	rec, err := h.gate.Refresh(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	claims := middleware.GetAdminClaims(c)
	subject := ""
	if claims != nil {
		subject = claims.Subject
	}
	h.logger.Info("License status refreshed",
		zap.String("status", string(rec.Status)),
		zap.String("admin", subject),
	)
	h.Success(c, h.toResponse(rec))
}
