// Package handlers implements the PROCESS_PAYMENT, PROCESS_REFUND and
// DELIVER_WEBHOOK job handlers.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
)

// Store is the persistence surface used by the handlers
type Store interface {
	GetMerchant(ctx context.Context, id string) (*domain.Merchant, error)

	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id, status string, at time.Time) error

	GetRefund(ctx context.Context, id string) (*domain.Refund, error)
	MarkRefundProcessed(ctx context.Context, id string, at time.Time) error

	CreateWebhookLog(ctx context.Context, log *domain.WebhookLog) error
	GetWebhookLog(ctx context.Context, id string) (*domain.WebhookLog, error)
	RecordWebhookAttempt(ctx context.Context, attempt domain.WebhookAttempt) error
}

// Enqueuer hands follow-up jobs to the queue. Errors are handled by the implementation.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType string, payload []byte)
}

// EnqueueWebhook builds the webhook payload for an event and enqueues its first delivery
func EnqueueWebhook(ctx context.Context, enq Enqueuer, merchantID, event string, data domain.WebhookData) error {
	payload, err := json.Marshal(domain.WebhookPayload{
		MerchantID: merchantID,
		Event:      event,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	job, err := json.Marshal(domain.WebhookJob{Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to encode webhook job: %w", err)
	}

	enq.EnqueueJob(ctx, domain.JobTypeDeliverWebhook, job)
	return nil
}

// wait blocks for d or until ctx is done
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
