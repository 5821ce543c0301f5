package handler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/clock"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/idempotency"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MerchantIDKey is the gin context key holding the authenticated merchant id
const MerchantIDKey = "merchant_id"

// IdempotencyKeyHeader carries the client-chosen idempotency key on payment creation
const IdempotencyKeyHeader = "Idempotency-Key"

// Store is the persistence surface used by the API handlers
type Store interface {
	GetMerchantByCredentials(ctx context.Context, apiKey, apiSecret string) (*domain.Merchant, error)

	CreatePayment(ctx context.Context, payment *domain.Payment) error
	GetPaymentForMerchant(ctx context.Context, id, merchantID string) (*domain.Payment, error)
	CapturePayment(ctx context.Context, id string, at time.Time) error

	CreateRefund(ctx context.Context, refund *domain.Refund) error
	GetRefundForMerchant(ctx context.Context, id, merchantID string) (*domain.Refund, error)
	SumRefunded(ctx context.Context, paymentID string) (int64, error)

	ListWebhookLogs(ctx context.Context, merchantID string, limit, offset int) ([]domain.WebhookLog, error)
	ResetWebhookLog(ctx context.Context, id, merchantID string, nextRetryAt time.Time) (*domain.WebhookLog, error)
}

// Enqueuer hands jobs to the worker queue
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType string, payload []byte)
}

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Store       Store
	Producer    Enqueuer
	Idempotency *idempotency.Cache
	Clock       clock.Clock
	Health      HealthChecker
	ServiceName string
}

func (d *Dependencies) now() time.Time {
	if d.Clock == nil {
		return time.Now().UTC()
	}
	return d.Clock.Now()
}

// merchantID returns the merchant resolved by the auth middleware
func merchantID(c *gin.Context) string {
	return c.GetString(MerchantIDKey)
}

// newID returns prefix followed by 16 random hex characters
func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
