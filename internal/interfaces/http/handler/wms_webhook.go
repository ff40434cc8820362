package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantapp/backend/internal/domain/wms"
	"github.com/tenantapp/backend/internal/infrastructure/scheduler"
	wmsclient "github.com/tenantapp/backend/internal/infrastructure/wms"
	"github.com/tenantapp/backend/internal/interfaces/http/dto"
	"github.com/tenantapp/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// DefaultMaxWebhookBody is the largest webhook body accepted.
const DefaultMaxWebhookBody = 1 << 20

// SignatureVerifier checks webhook authenticity.
type SignatureVerifier interface {
	Verify(body []byte, signature, secret string) bool
}

// WebhookSubmitter queues verified webhook events.
type WebhookSubmitter interface {
	Submit(event wms.WebhookEvent) (*scheduler.WebhookJob, error)
}

// WmsWebhookHandlerConfig contains configuration for WmsWebhookHandler
type WmsWebhookHandlerConfig struct {
	Verifier SignatureVerifier
	Queue    WebhookSubmitter
	Secret   string
	MaxBody  int64
	Logger   *zap.Logger
}

// WmsWebhookHandler receives WMS webhooks. It only verifies and enqueues;
// the queue workers apply the event.
type WmsWebhookHandler struct {
	BaseHandler
	verifier SignatureVerifier
	queue    WebhookSubmitter
	secret   string
	maxBody  int64
	logger   *zap.Logger
}

// NewWmsWebhookHandler creates a new WmsWebhookHandler
func NewWmsWebhookHandler(cfg WmsWebhookHandlerConfig) *WmsWebhookHandler {
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = DefaultMaxWebhookBody
	}
	return &WmsWebhookHandler{
		verifier: cfg.Verifier,
		queue:    cfg.Queue,
		secret:   cfg.Secret,
		maxBody:  cfg.MaxBody,
		logger:   cfg.Logger,
	}
}

// WebhookReceivedResponse is the body of a 202.
type WebhookReceivedResponse struct {
	Received  bool   `json:"received"`
	EventType string `json:"event_type"`
	JobID     string `json:"job_id"`
}

// Receive godoc
// @Summary      Receive a WMS webhook
// @Tags         wms
// @Accept       json
// @Produce      json
// @Param        X-WMS-Signature header string true "hex HMAC-SHA256 of the body"
// @Success      202 {object} dto.Response
// @Failure      400,401,413,503 {object} dto.Response
// @Router       /wms/webhook [post]
func (h *WmsWebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBody+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.ErrorWithCode(c, dto.ErrCodePayloadTooLarge, "Webhook body too large")
			return
		}
		h.BadRequest(c, "Could not read request body")
		return
	}
	if int64(len(body)) > h.maxBody {
		h.ErrorWithCode(c, dto.ErrCodePayloadTooLarge, "Webhook body too large")
		return
	}

	if !h.verifier.Verify(body, c.GetHeader(wmsclient.SignatureHeader), h.secret) {
		h.logger.Warn("Invalid WMS webhook signature",
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", getRequestID(c)),
		)
		h.ErrorWithCode(c, dto.ErrCodeInvalidSignature, "Invalid signature")
		return
	}

	var event wms.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.ErrorWithCode(c, dto.ErrCodeInvalidJSON, "Malformed JSON body")
		return
	}
	if err := middleware.ValidateStruct(&event); err != nil {
		h.ValidationError(c, err)
		return
	}

	job, err := h.queue.Submit(event)
	if err != nil {
		h.logger.Error("Failed to queue WMS webhook",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		h.ErrorWithCode(c, dto.ErrCodeServiceUnavailable, "Webhook queue unavailable, retry later")
		return
	}

	h.logger.Info("WMS webhook queued",
		zap.String("event_type", event.EventType),
		zap.String("job_id", job.ID.String()),
	)
	h.Accepted(c, WebhookReceivedResponse{
		Received:  true,
		EventType: event.EventType,
		JobID:     job.ID.String(),
	})
}
