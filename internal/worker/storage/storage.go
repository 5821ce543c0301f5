package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/jmoiron/sqlx"
)

const (
	merchantColumns   = `id, name, email, api_key, api_secret, webhook_url, webhook_secret, created_at`
	paymentColumns    = `id, merchant_id, order_id, amount, currency, method, status, captured, created_at, updated_at`
	refundColumns     = `id, payment_id, merchant_id, amount, reason, status, created_at, processed_at`
	webhookLogColumns = `id, merchant_id, event, payload, status, attempts, last_attempt_at, next_retry_at, response_code, response_body, created_at`
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// GetMerchant retrieves a merchant by id
func (s *Storage) GetMerchant(ctx context.Context, id string) (*domain.Merchant, error) {
	var m domain.Merchant
	err := s.db.GetContext(ctx, &m, `SELECT `+merchantColumns+` FROM merchants WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("merchant %s", id)
		}
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}
	return &m, nil
}

// GetPayment retrieves a payment by id
func (s *Storage) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	var p domain.Payment
	err := s.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("payment %s", id)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// UpdatePaymentStatus sets the payment status
func (s *Storage) UpdatePaymentStatus(ctx context.Context, id, status string, at time.Time) error {
	query := `
		UPDATE payments
		SET status = $1,
		    updated_at = $2
		WHERE id = $3
	`

	return s.execOne(ctx, "payment "+id, query, status, at, id)
}

// GetRefund retrieves a refund by id
func (s *Storage) GetRefund(ctx context.Context, id string) (*domain.Refund, error) {
	var r domain.Refund
	err := s.db.GetContext(ctx, &r, `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("refund %s", id)
		}
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return &r, nil
}

// MarkRefundProcessed sets the refund status to processed
func (s *Storage) MarkRefundProcessed(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE refunds
		SET status = $1,
		    processed_at = $2
		WHERE id = $3
	`

	return s.execOne(ctx, "refund "+id, query, domain.RefundStatusProcessed, at, id)
}

// CreateWebhookLog inserts a new delivery log
func (s *Storage) CreateWebhookLog(ctx context.Context, l *domain.WebhookLog) error {
	query := `
		INSERT INTO webhook_logs (
			id, merchant_id, event, payload, status,
			attempts, next_retry_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		l.ID,
		l.MerchantID,
		l.Event,
		string(l.Payload),
		l.Status,
		l.Attempts,
		l.NextRetryAt,
		l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook log: %w", err)
	}

	return nil
}

// GetWebhookLog retrieves a delivery log by id
func (s *Storage) GetWebhookLog(ctx context.Context, id string) (*domain.WebhookLog, error) {
	var l domain.WebhookLog
	err := s.db.GetContext(ctx, &l, `SELECT `+webhookLogColumns+` FROM webhook_logs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("webhook log %s", id)
		}
		return nil, fmt.Errorf("failed to get webhook log: %w", err)
	}
	return &l, nil
}

// RecordWebhookAttempt applies the outcome of one delivery attempt to its log.
// It returns domain.ErrStaleAttempt when the log has moved on since the
// attempt started.
func (s *Storage) RecordWebhookAttempt(ctx context.Context, a domain.WebhookAttempt) error {
	query := `
		UPDATE webhook_logs
		SET status = $1,
		    attempts = $2,
		    last_attempt_at = $3,
		    next_retry_at = $4,
		    response_code = $5,
		    response_body = $6
		WHERE id = $7
		  AND status = $8
		  AND attempts = $9
	`

	var next sql.NullTime
	if a.NextRetryAt != nil {
		next = sql.NullTime{Time: *a.NextRetryAt, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, query,
		a.Status, a.Attempts, a.AttemptedAt, next, a.ResponseCode, a.ResponseBody, a.LogID,
		domain.WebhookStatusPending, a.PrevAttempts,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook log %s: %w", a.LogID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("webhook log %s: %w", a.LogID, domain.ErrStaleAttempt)
	}

	s.logger.Debug("Webhook attempt recorded",
		slog.String("log_id", a.LogID),
		slog.String("status", a.Status),
		slog.Int("attempts", a.Attempts),
	)

	return nil
}

// ListDueWebhookLogs returns pending logs whose next_retry_at is before now, oldest first
func (s *Storage) ListDueWebhookLogs(ctx context.Context, now time.Time, limit int) ([]domain.WebhookLog, error) {
	query := `
		SELECT ` + webhookLogColumns + `
		FROM webhook_logs
		WHERE status = $1
		  AND next_retry_at < $2
		ORDER BY next_retry_at
		LIMIT $3
	`

	var logs []domain.WebhookLog
	if err := s.db.SelectContext(ctx, &logs, query, domain.WebhookStatusPending, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list due webhook logs: %w", err)
	}

	return logs, nil
}

// MarkWebhookFailed dead-letters a log
func (s *Storage) MarkWebhookFailed(ctx context.Context, id string) error {
	query := `
		UPDATE webhook_logs
		SET status = $1,
		    next_retry_at = NULL
		WHERE id = $2
	`

	return s.execOne(ctx, "webhook log "+id, query, domain.WebhookStatusFailed, id)
}

// RescheduleWebhook pushes next_retry_at forward
func (s *Storage) RescheduleWebhook(ctx context.Context, id string, next time.Time) error {
	query := `
		UPDATE webhook_logs
		SET next_retry_at = $1
		WHERE id = $2
	`

	return s.execOne(ctx, "webhook log "+id, query, next, id)
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
