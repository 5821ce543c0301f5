package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/payment-gateway/internal/clock"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/metrics"
	"github.com/cuongbtq/payment-gateway/internal/webhook"
	"github.com/google/uuid"
)

// WebhookURLMissingBody is recorded on logs failed for lack of a webhook URL
const WebhookURLMissingBody = "Webhook URL not configured"

// WebhookHandler delivers one attempt of a merchant webhook and records it
// on the delivery log
type WebhookHandler struct {
	store  Store
	sender *webhook.Sender
	clock  clock.Clock
	logger *slog.Logger
}

func NewWebhookHandler(store Store, sender *webhook.Sender, clk clock.Clock, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		store:  store,
		sender: sender,
		clock:  clk,
		logger: logger,
	}
}

// Handle processes a DELIVER_WEBHOOK job
func (h *WebhookHandler) Handle(ctx context.Context, payload []byte) error {
	var job domain.WebhookJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	var event domain.WebhookPayload
	if err := json.Unmarshal(job.Payload, &event); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	merchant, err := h.store.GetMerchant(ctx, event.MerchantID)
	if err != nil {
		return fmt.Errorf("failed to load merchant: %w", err)
	}

	if !merchant.WebhookURL.Valid || merchant.WebhookURL.String == "" {
		if job.LogID != "" {
			return h.deadLetterUndeliverable(ctx, job, event)
		}
		h.logger.Debug("Merchant has no webhook URL, skipping delivery",
			slog.String("merchant_id", merchant.ID),
			slog.String("event", event.Event),
		)
		return nil
	}

	deliveryLog, err := h.resolveLog(ctx, job, event)
	if err != nil {
		return err
	}
	if deliveryLog == nil {
		return nil
	}

	resp := h.sender.Send(ctx, merchant.WebhookURL.String, merchant.WebhookSecret.String, deliveryLog.Payload)

	now := h.clock.Now()
	attempt := domain.WebhookAttempt{
		LogID:        deliveryLog.ID,
		PrevAttempts: deliveryLog.Attempts,
		Attempts:     deliveryLog.Attempts + 1,
		AttemptedAt:  now,
		ResponseCode: resp.StatusCode,
		ResponseBody: resp.Body,
	}

	switch {
	case resp.Succeeded():
		attempt.Status = domain.WebhookStatusSuccess
		metrics.WebhookDeliveries.WithLabelValues(deliveryLog.Event, "success").Inc()
	case attempt.Attempts >= domain.MaxWebhookAttempts:
		attempt.Status = domain.WebhookStatusFailed
		metrics.WebhookDeliveries.WithLabelValues(deliveryLog.Event, "failure").Inc()
		metrics.WebhookDeadLettered.Inc()
	default:
		next := now.Add(domain.WebhookRetryDelay)
		attempt.Status = domain.WebhookStatusPending
		attempt.NextRetryAt = &next
		metrics.WebhookDeliveries.WithLabelValues(deliveryLog.Event, "failure").Inc()
	}

	if err := h.store.RecordWebhookAttempt(ctx, attempt); err != nil {
		if errors.Is(err, domain.ErrStaleAttempt) {
			h.logger.Warn("Webhook log changed during delivery, dropping attempt",
				slog.String("log_id", deliveryLog.ID),
				slog.Int("attempts", attempt.Attempts),
				slog.Int("response_code", resp.StatusCode),
			)
			return nil
		}
		return fmt.Errorf("failed to record webhook attempt: %w", err)
	}

	h.logger.Info("Webhook delivery attempted",
		slog.String("log_id", deliveryLog.ID),
		slog.String("event", deliveryLog.Event),
		slog.Int("attempts", attempt.Attempts),
		slog.Int("response_code", resp.StatusCode),
		slog.String("status", attempt.Status),
	)

	return nil
}

// resolveLog returns the log this attempt belongs to, creating it on first
// delivery. A nil log means the job refers to a finished delivery.
func (h *WebhookHandler) resolveLog(ctx context.Context, job domain.WebhookJob, event domain.WebhookPayload) (*domain.WebhookLog, error) {
	if job.LogID == "" {
		now := h.clock.Now()
		deliveryLog := &domain.WebhookLog{
			ID:         uuid.New().String(),
			MerchantID: event.MerchantID,
			Event:      event.Event,
			Payload:    []byte(job.Payload),
			Status:     domain.WebhookStatusPending,
			CreatedAt:  now,
		}
		// picked up by the retry poller if this attempt is never recorded
		deliveryLog.NextRetryAt.Time = now.Add(domain.WebhookRetryDelay)
		deliveryLog.NextRetryAt.Valid = true
		if err := h.store.CreateWebhookLog(ctx, deliveryLog); err != nil {
			return nil, fmt.Errorf("failed to create webhook log: %w", err)
		}
		return deliveryLog, nil
	}

	deliveryLog, err := h.store.GetWebhookLog(ctx, job.LogID)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook log: %w", err)
	}

	if deliveryLog.IsTerminal() {
		h.logger.Info("Webhook log already finished, dropping job",
			slog.String("log_id", deliveryLog.ID),
			slog.String("status", deliveryLog.Status),
		)
		return nil, nil
	}

	return deliveryLog, nil
}

// deadLetterUndeliverable fails an existing log whose merchant no longer has a
// webhook URL. No delivery is attempted so the attempt count is unchanged.
func (h *WebhookHandler) deadLetterUndeliverable(ctx context.Context, job domain.WebhookJob, event domain.WebhookPayload) error {
	deliveryLog, err := h.resolveLog(ctx, job, event)
	if err != nil || deliveryLog == nil {
		return err
	}

	err = h.store.RecordWebhookAttempt(ctx, domain.WebhookAttempt{
		LogID:        deliveryLog.ID,
		PrevAttempts: deliveryLog.Attempts,
		Status:       domain.WebhookStatusFailed,
		Attempts:     deliveryLog.Attempts,
		AttemptedAt:  h.clock.Now(),
		ResponseBody: WebhookURLMissingBody,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleAttempt) {
			return nil
		}
		return fmt.Errorf("failed to dead-letter webhook log: %w", err)
	}

	metrics.WebhookDeadLettered.Inc()
	h.logger.Warn("Merchant has no webhook URL, webhook log failed",
		slog.String("log_id", deliveryLog.ID),
		slog.String("merchant_id", deliveryLog.MerchantID),
		slog.String("event", deliveryLog.Event),
	)

	return nil
}
