// Package idempotency deduplicates payment creation by (key, merchant).
//
// Lookup and Store are separate calls, so two requests carrying the same key
// can both miss and both create a payment. Callers that need stronger
// guarantees must serialise on the key themselves.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/payment-gateway/internal/clock"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/metrics"
)

// Repository persists idempotency records
type Repository interface {
	GetIdempotencyRecord(ctx context.Context, key, merchantID string) (*domain.IdempotencyRecord, error)
	SaveIdempotencyRecord(ctx context.Context, record *domain.IdempotencyRecord) error
	DeleteIdempotencyRecord(ctx context.Context, key, merchantID string) error
}

// Cache answers whether a payment request was already served
type Cache struct {
	repo   Repository
	clock  clock.Clock
	logger *slog.Logger
}

// NewCache creates a new Cache
func NewCache(repo Repository, clk clock.Clock, logger *slog.Logger) *Cache {
	return &Cache{repo: repo, clock: clk, logger: logger}
}

// Lookup returns the cached response for (key, merchantID). An expired record
// is deleted and reported as a miss.
func (c *Cache) Lookup(ctx context.Context, key, merchantID string) ([]byte, bool, error) {
	record, err := c.repo.GetIdempotencyRecord(ctx, key, merchantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IdempotencyLookups.WithLabelValues("miss").Inc()
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}

	if !c.clock.Now().Before(record.ExpiresAt) {
		metrics.IdempotencyLookups.WithLabelValues("expired").Inc()
		if err := c.repo.DeleteIdempotencyRecord(ctx, key, merchantID); err != nil {
			return nil, false, fmt.Errorf("failed to purge expired idempotency key: %w", err)
		}
		c.logger.Debug("Purged expired idempotency key",
			slog.String("merchant_id", merchantID),
			slog.Time("expired_at", record.ExpiresAt),
		)
		return nil, false, nil
	}

	metrics.IdempotencyLookups.WithLabelValues("hit").Inc()
	return record.Response, true, nil
}

// Store caches response for (key, merchantID) for domain.IdempotencyTTL
func (c *Cache) Store(ctx context.Context, key, merchantID string, response []byte) error {
	now := c.clock.Now()
	record := &domain.IdempotencyRecord{
		Key:        key,
		MerchantID: merchantID,
		Response:   response,
		ExpiresAt:  now.Add(domain.IdempotencyTTL),
		CreatedAt:  now,
	}

	if err := c.repo.SaveIdempotencyRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}

	return nil
}
