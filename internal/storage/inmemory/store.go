// Package inmemory is a map-backed store for tests and single-process runs.
// It implements the API, worker and idempotency repositories.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
)

type idempotencyKey struct {
	key        string
	merchantID string
}

// Store keeps every entity in process memory
type Store struct {
	mu          sync.RWMutex
	merchants   map[string]domain.Merchant
	payments    map[string]domain.Payment
	refunds     map[string]domain.Refund
	webhookLogs map[string]domain.WebhookLog
	idempotency map[idempotencyKey]domain.IdempotencyRecord
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		merchants:   make(map[string]domain.Merchant),
		payments:    make(map[string]domain.Payment),
		refunds:     make(map[string]domain.Refund),
		webhookLogs: make(map[string]domain.WebhookLog),
		idempotency: make(map[idempotencyKey]domain.IdempotencyRecord),
	}
}

// AddMerchant inserts or replaces a merchant
func (s *Store) AddMerchant(m domain.Merchant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchants[m.ID] = m
}

func (s *Store) GetMerchant(_ context.Context, id string) (*domain.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.merchants[id]
	if !ok {
		return nil, domain.NotFoundf("merchant %s", id)
	}
	return &m, nil
}

func (s *Store) GetMerchantByCredentials(_ context.Context, apiKey, apiSecret string) (*domain.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.merchants {
		if m.APIKey == apiKey && m.APISecret == apiSecret {
			return &m, nil
		}
	}
	return nil, domain.NotFoundf("merchant with api key %s", apiKey)
}

// Payments

func (s *Store) CreatePayment(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = *p
	return nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, domain.NotFoundf("payment %s", id)
	}
	return &p, nil
}

func (s *Store) GetPaymentForMerchant(ctx context.Context, id, merchantID string) (*domain.Payment, error) {
	p, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.MerchantID != merchantID {
		return nil, domain.NotFoundf("payment %s", id)
	}
	return p, nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, id, status string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return domain.NotFoundf("payment %s", id)
	}
	p.Status = status
	p.UpdatedAt = at
	s.payments[id] = p
	return nil
}

func (s *Store) CapturePayment(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return domain.NotFoundf("payment %s", id)
	}
	p.Captured = true
	p.UpdatedAt = at
	s.payments[id] = p
	return nil
}

// CountPayments returns the number of stored payments
func (s *Store) CountPayments() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payments)
}

// Refunds

func (s *Store) CreateRefund(_ context.Context, r *domain.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunds[r.ID] = *r
	return nil
}

func (s *Store) GetRefund(_ context.Context, id string) (*domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.refunds[id]
	if !ok {
		return nil, domain.NotFoundf("refund %s", id)
	}
	return &r, nil
}

func (s *Store) GetRefundForMerchant(ctx context.Context, id, merchantID string) (*domain.Refund, error) {
	r, err := s.GetRefund(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.MerchantID != merchantID {
		return nil, domain.NotFoundf("refund %s", id)
	}
	return r, nil
}

func (s *Store) SumRefunded(_ context.Context, paymentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, r := range s.refunds {
		if r.PaymentID == paymentID && r.Status != domain.RefundStatusFailed {
			total += r.Amount
		}
	}
	return total, nil
}

func (s *Store) MarkRefundProcessed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.refunds[id]
	if !ok {
		return domain.NotFoundf("refund %s", id)
	}
	r.Status = domain.RefundStatusProcessed
	r.ProcessedAt.Time = at
	r.ProcessedAt.Valid = true
	s.refunds[id] = r
	return nil
}

// Webhook logs

func (s *Store) CreateWebhookLog(_ context.Context, l *domain.WebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhookLogs[l.ID] = *l
	return nil
}

func (s *Store) GetWebhookLog(_ context.Context, id string) (*domain.WebhookLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.webhookLogs[id]
	if !ok {
		return nil, domain.NotFoundf("webhook log %s", id)
	}
	return &l, nil
}

func (s *Store) RecordWebhookAttempt(_ context.Context, a domain.WebhookAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.webhookLogs[a.LogID]
	if !ok || l.Status != domain.WebhookStatusPending || l.Attempts != a.PrevAttempts {
		return fmt.Errorf("webhook log %s: %w", a.LogID, domain.ErrStaleAttempt)
	}
	l.Status = a.Status
	l.Attempts = a.Attempts
	l.LastAttemptAt.Time = a.AttemptedAt
	l.LastAttemptAt.Valid = true
	l.NextRetryAt.Valid = a.NextRetryAt != nil
	if a.NextRetryAt != nil {
		l.NextRetryAt.Time = *a.NextRetryAt
	}
	l.ResponseCode.Int32 = int32(a.ResponseCode)
	l.ResponseCode.Valid = true
	l.ResponseBody.String = a.ResponseBody
	l.ResponseBody.Valid = true
	s.webhookLogs[a.LogID] = l
	return nil
}

func (s *Store) ListDueWebhookLogs(_ context.Context, now time.Time, limit int) ([]domain.WebhookLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []domain.WebhookLog
	for _, l := range s.webhookLogs {
		if l.Status == domain.WebhookStatusPending && l.NextRetryAt.Valid && l.NextRetryAt.Time.Before(now) {
			due = append(due, l)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRetryAt.Time.Before(due[j].NextRetryAt.Time)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) MarkWebhookFailed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.webhookLogs[id]
	if !ok {
		return domain.NotFoundf("webhook log %s", id)
	}
	l.Status = domain.WebhookStatusFailed
	l.NextRetryAt.Valid = false
	s.webhookLogs[id] = l
	return nil
}

func (s *Store) RescheduleWebhook(_ context.Context, id string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.webhookLogs[id]
	if !ok {
		return domain.NotFoundf("webhook log %s", id)
	}
	l.NextRetryAt.Time = next
	l.NextRetryAt.Valid = true
	s.webhookLogs[id] = l
	return nil
}

func (s *Store) ListWebhookLogs(_ context.Context, merchantID string, limit, offset int) ([]domain.WebhookLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var logs []domain.WebhookLog
	for _, l := range s.webhookLogs {
		if l.MerchantID == merchantID {
			logs = append(logs, l)
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].ID > logs[j].ID
		}
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})

	if offset >= len(logs) {
		return []domain.WebhookLog{}, nil
	}
	logs = logs[offset:]
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) ResetWebhookLog(_ context.Context, id, merchantID string, nextRetryAt time.Time) (*domain.WebhookLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.webhookLogs[id]
	if !ok || l.MerchantID != merchantID {
		return nil, domain.NotFoundf("webhook log %s", id)
	}
	l.Status = domain.WebhookStatusPending
	l.Attempts = 0
	l.NextRetryAt.Time = nextRetryAt
	l.NextRetryAt.Valid = true
	s.webhookLogs[id] = l
	return &l, nil
}

// Idempotency records

func (s *Store) GetIdempotencyRecord(_ context.Context, key, merchantID string) (*domain.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.idempotency[idempotencyKey{key, merchantID}]
	if !ok {
		return nil, domain.NotFoundf("idempotency key %s", key)
	}
	return &r, nil
}

func (s *Store) SaveIdempotencyRecord(_ context.Context, r *domain.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotency[idempotencyKey{r.Key, r.MerchantID}] = *r
	return nil
}

func (s *Store) DeleteIdempotencyRecord(_ context.Context, key, merchantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.idempotency, idempotencyKey{key, merchantID})
	return nil
}
