package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/payment-gateway/internal/api/dto"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/gin-gonic/gin"
)

// WebhookHandler serves the merchant's webhook delivery logs
type WebhookHandler struct {
	*Dependencies
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	return &WebhookHandler{Dependencies: deps}
}

// ListWebhooks handles GET /api/v1/webhooks
func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	var req dto.ListWebhooksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	if req.Limit <= 0 {
		req.Limit = dto.DefaultWebhookPageSize
	}
	if req.Limit > dto.MaxWebhookPageSize {
		req.Limit = dto.MaxWebhookPageSize
	}

	logs, err := h.Store.ListWebhookLogs(c.Request.Context(), merchantID(c), req.Limit, req.Offset)
	if err != nil {
		respondError(c, h.Logger, fmt.Errorf("failed to list webhook logs: %w", err))
		return
	}

	c.JSON(http.StatusOK, dto.NewListWebhooksResponse(logs, req.Limit, req.Offset))
}

// RetryWebhook handles POST /api/v1/webhooks/:webhook_id/retry
// The log is reset to pending with zero attempts and redelivered with its stored payload.
func (h *WebhookHandler) RetryWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	// lease keeps the poller away while the manual retry is queued
	lease := h.now().Add(domain.WebhookRequeueLease)

	log, err := h.Store.ResetWebhookLog(ctx, c.Param("webhook_id"), merchantID(c), lease)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	job, err := json.Marshal(domain.WebhookJob{LogID: log.ID, Payload: json.RawMessage(log.Payload)})
	if err != nil {
		respondError(c, h.Logger, fmt.Errorf("failed to encode webhook job: %w", err))
		return
	}

	h.Producer.EnqueueJob(ctx, domain.JobTypeDeliverWebhook, job)

	h.Logger.Info("Webhook retry scheduled",
		slog.String("webhook_id", log.ID),
		slog.String("event", log.Event),
	)

	c.JSON(http.StatusOK, dto.RetryWebhookResponse{
		ID:      log.ID,
		Status:  domain.WebhookStatusPending,
		Message: "Retry scheduled",
	})
}

// JobStatus handles GET /api/v1/test/jobs/status
func JobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "worker_running"})
}
