package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantapp/backend/internal/domain/update"
	"github.com/tenantapp/backend/internal/interfaces/http/dto"
	"github.com/tenantapp/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Updater runs and inspects the self-update pipeline.
type Updater interface {
	Check(ctx context.Context) (*update.Availability, error)
	Perform(ctx context.Context) (*update.Report, error)
}

// UpdateHandler serves the self-update endpoints.
type UpdateHandler struct {
	BaseHandler
	updater Updater
	logger  *zap.Logger
}

// NewUpdateHandler creates a new UpdateHandler
func NewUpdateHandler(updater Updater, logger *zap.Logger) *UpdateHandler {
	return &UpdateHandler{updater: updater, logger: logger}
}

// Check godoc
// @Summary      Compare the deployed revision with upstream
// @Tags         admin-updates
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.Response{data=update.Availability}
// @Failure      502 {object} dto.Response
// @Router       /admin/updates/check [get]
func (h *UpdateHandler) Check(c *gin.Context) {
	availability, err := h.updater.Check(c.Request.Context())
	if err != nil {
		h.logger.Warn("Update check failed", zap.Error(err))
		h.Error(c, http.StatusBadGateway, dto.ErrCodeUpstreamUnavailable, "Could not reach the update remote")
		return
	}
	h.Success(c, availability)
}

// Perform godoc
// @Summary      Pull, install, migrate and restart caches
// @Description  Runs the update pipeline. A failed step rolls back the completed ones and the report is returned with the error.
// @Tags         admin-updates
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.Response{data=update.Report}
// @Failure      409 {object} dto.Response
// @Failure      500 {object} dto.Response{data=update.Report}
// @Router       /admin/updates/perform [post]
func (h *UpdateHandler) Perform(c *gin.Context) {
	subject := ""
	if claims := middleware.GetAdminClaims(c); claims != nil {
		subject = claims.Subject
	}
	h.logger.Info("Update requested", zap.String("admin", subject))

	report, err := h.updater.Perform(c.Request.Context())
	switch {
	case err == nil:
		h.Success(c, report)
	case errors.Is(err, update.ErrUpdateInProgress):
		h.Error(c, http.StatusConflict, dto.ErrCodeUpdateInProgress, "An update is already running")
	case errors.Is(err, update.ErrUpdateFailed) && report != nil:
		resp := dto.NewErrorResponseWithData(dto.ErrCodeUpdateFailed, err.Error(), report)
		resp.Error.RequestID = getRequestID(c)
		c.JSON(http.StatusInternalServerError, resp)
	default:
		h.logger.Error("Update aborted", zap.Error(err))
		h.InternalError(c, "Update aborted")
	}
}
