package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/shared/postgresql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	merchantColumns   = `id, name, email, api_key, api_secret, webhook_url, webhook_secret, created_at`
	paymentColumns    = `id, merchant_id, order_id, amount, currency, method, status, captured, created_at, updated_at`
	refundColumns     = `id, payment_id, merchant_id, amount, reason, status, created_at, processed_at`
	webhookLogColumns = `id, merchant_id, event, payload, status, attempts, last_attempt_at, next_retry_at, response_code, response_body, created_at`
)

// Storage handles all database operations for the API service
type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// GetMerchantByCredentials resolves a merchant from its API key pair
func (s *Storage) GetMerchantByCredentials(ctx context.Context, apiKey, apiSecret string) (*domain.Merchant, error) {
	var m domain.Merchant
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE api_key = $1 AND api_secret = $2`

	err := s.db.GetContext(ctx, &m, query, apiKey, apiSecret)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}

	return &m, nil
}

func (s *Storage) CreatePayment(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (
			id, merchant_id, order_id, amount, currency,
			method, status, captured, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.MerchantID,
		p.OrderID,
		p.Amount,
		p.Currency,
		p.Method,
		p.Status,
		p.Captured,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetPaymentForMerchant reports payments owned by another merchant as not found
func (s *Storage) GetPaymentForMerchant(ctx context.Context, id, merchantID string) (*domain.Payment, error) {
	var p domain.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND merchant_id = $2`

	err := s.db.GetContext(ctx, &p, query, id, merchantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("payment %s", id)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &p, nil
}

func (s *Storage) CapturePayment(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE payments
		SET captured = TRUE,
		    updated_at = $1
		WHERE id = $2
	`

	return s.execOne(ctx, "payment "+id, query, at, id)
}

func (s *Storage) CreateRefund(ctx context.Context, r *domain.Refund) error {
	query := `
		INSERT INTO refunds (
			id, payment_id, merchant_id, amount,
			reason, status, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.PaymentID,
		r.MerchantID,
		r.Amount,
		r.Reason,
		r.Status,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}

	return nil
}

func (s *Storage) GetRefundForMerchant(ctx context.Context, id, merchantID string) (*domain.Refund, error) {
	var r domain.Refund
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1 AND merchant_id = $2`

	err := s.db.GetContext(ctx, &r, query, id, merchantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("refund %s", id)
		}
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}

	return &r, nil
}

// SumRefunded totals pending and processed refunds of a payment
func (s *Storage) SumRefunded(ctx context.Context, paymentID string) (int64, error) {
	var total int64
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM refunds
		WHERE payment_id = $1
		  AND status <> $2
	`

	if err := s.db.GetContext(ctx, &total, query, paymentID, domain.RefundStatusFailed); err != nil {
		return 0, fmt.Errorf("failed to sum refunds: %w", err)
	}

	return total, nil
}

// ListWebhookLogs returns the merchant's delivery logs, newest first
func (s *Storage) ListWebhookLogs(ctx context.Context, merchantID string, limit, offset int) ([]domain.WebhookLog, error) {
	query := `
		SELECT ` + webhookLogColumns + `
		FROM webhook_logs
		WHERE merchant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	logs := []domain.WebhookLog{}
	if err := s.db.SelectContext(ctx, &logs, query, merchantID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}

	return logs, nil
}

// ResetWebhookLog puts a log back to pending with zero attempts
func (s *Storage) ResetWebhookLog(ctx context.Context, id, merchantID string, nextRetryAt time.Time) (*domain.WebhookLog, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.NotFoundf("webhook log %s", id)
	}

	query := `
		UPDATE webhook_logs
		SET status = $1,
		    attempts = 0,
		    next_retry_at = $2
		WHERE id = $3
		  AND merchant_id = $4
		RETURNING ` + webhookLogColumns

	var l domain.WebhookLog
	err := s.db.GetContext(ctx, &l, query, domain.WebhookStatusPending, nextRetryAt, id, merchantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("webhook log %s", id)
		}
		return nil, fmt.Errorf("failed to reset webhook log: %w", err)
	}

	return &l, nil
}

func (s *Storage) GetIdempotencyRecord(ctx context.Context, key, merchantID string) (*domain.IdempotencyRecord, error) {
	var r domain.IdempotencyRecord
	query := `
		SELECT key, merchant_id, response, expires_at, created_at
		FROM idempotency_keys
		WHERE key = $1 AND merchant_id = $2
	`

	err := s.db.GetContext(ctx, &r, query, key, merchantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("idempotency key %s", key)
		}
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}

	return &r, nil
}

// SaveIdempotencyRecord upserts so a key that lost the creation race still stores cleanly
func (s *Storage) SaveIdempotencyRecord(ctx context.Context, r *domain.IdempotencyRecord) error {
	query := `
		INSERT INTO idempotency_keys (key, merchant_id, response, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key, merchant_id) DO UPDATE
		SET response = EXCLUDED.response,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
	`

	if _, err := s.db.ExecContext(ctx, query, r.Key, r.MerchantID, r.Response, r.ExpiresAt, r.CreatedAt); err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}

	return nil
}

func (s *Storage) DeleteIdempotencyRecord(ctx context.Context, key, merchantID string) error {
	query := `DELETE FROM idempotency_keys WHERE key = $1 AND merchant_id = $2`

	if _, err := s.db.ExecContext(ctx, query, key, merchantID); err != nil {
		return fmt.Errorf("failed to delete idempotency key: %w", err)
	}

	return nil
}

// execOne runs an update that must touch exactly one row
func (s *Storage) execOne(ctx context.Context, entity, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", entity, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.NotFoundf("%s", entity)
	}

	return nil
}
