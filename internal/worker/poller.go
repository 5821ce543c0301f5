package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/clock"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/metrics"
)

// PollerStore is the persistence surface used by the retry poller
type PollerStore interface {
	ListDueWebhookLogs(ctx context.Context, now time.Time, limit int) ([]domain.WebhookLog, error)
	MarkWebhookFailed(ctx context.Context, id string) error
	RescheduleWebhook(ctx context.Context, id string, next time.Time) error
}

// Enqueuer hands jobs to the queue
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType string, payload []byte)
}

// Locker grants a single poller instance the right to scan. release must be
// called when ok is true.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// PollerConfig holds retry poller dependencies
type PollerConfig struct {
	Logger    *slog.Logger
	Store     PollerStore
	Enqueuer  Enqueuer
	Clock     clock.Clock
	Interval  time.Duration
	BatchSize int
	// Locker is optional; without it every instance scans
	Locker Locker
}

// RetryPoller rescans pending webhook logs whose retry time has passed and
// either requeues or dead-letters them. Several instances without a Locker
// may requeue the same log twice.
type RetryPoller struct {
	logger    *slog.Logger
	store     PollerStore
	enqueuer  Enqueuer
	clock     clock.Clock
	interval  time.Duration
	batchSize int
	locker    Locker
}

func NewRetryPoller(cfg *PollerConfig) *RetryPoller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	return &RetryPoller{
		logger:    cfg.Logger,
		store:     cfg.Store,
		enqueuer:  cfg.Enqueuer,
		clock:     clk,
		interval:  interval,
		batchSize: batch,
		locker:    cfg.Locker,
	}
}

// Run scans on every tick until ctx is canceled
func (p *RetryPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Retry poller started",
		slog.Duration("interval", p.interval),
		slog.Int("batch_size", p.batchSize),
		slog.Bool("single_owner", p.locker != nil),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Retry poller stopped")
			return nil
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one scan
func (p *RetryPoller) Poll(ctx context.Context) {
	if p.locker != nil {
		release, ok, err := p.locker.TryLock(ctx)
		if err != nil {
			metrics.PollerRuns.WithLabelValues("error").Inc()
			p.logger.Error("Failed to acquire retry poller lock", slog.Any("error", err))
			return
		}
		if !ok {
			metrics.PollerRuns.WithLabelValues("skipped").Inc()
			p.logger.Debug("Retry poller lock held elsewhere, skipping scan")
			return
		}
		defer release()
	}

	now := p.clock.Now()
	logs, err := p.store.ListDueWebhookLogs(ctx, now, p.batchSize)
	if err != nil {
		metrics.PollerRuns.WithLabelValues("error").Inc()
		p.logger.Error("Failed to list due webhook logs", slog.Any("error", err))
		return
	}
	metrics.PollerRuns.WithLabelValues("success").Inc()

	for i := range logs {
		p.handleDue(ctx, &logs[i], now)
	}

	if len(logs) > 0 {
		p.logger.Info("Retry poller scan complete", slog.Int("due", len(logs)))
	}
}

func (p *RetryPoller) handleDue(ctx context.Context, l *domain.WebhookLog, now time.Time) {
	if l.Attempts >= domain.MaxWebhookAttempts {
		if err := p.store.MarkWebhookFailed(ctx, l.ID); err != nil {
			p.logger.Error("Failed to dead-letter webhook log",
				slog.String("log_id", l.ID),
				slog.Any("error", err),
			)
			return
		}
		metrics.WebhookDeadLettered.Inc()
		p.logger.Warn("Webhook log dead-lettered",
			slog.String("log_id", l.ID),
			slog.Int("attempts", l.Attempts),
		)
		return
	}

	payload, err := json.Marshal(domain.WebhookJob{LogID: l.ID, Payload: l.Payload})
	if err != nil {
		p.logger.Error("Failed to encode webhook retry job",
			slog.String("log_id", l.ID),
			slog.Any("error", err),
		)
		return
	}

	// lease first so a fast delivery attempt is not overwritten by the lease
	if err := p.store.RescheduleWebhook(ctx, l.ID, now.Add(domain.WebhookRequeueLease)); err != nil {
		p.logger.Error("Failed to lease webhook log",
			slog.String("log_id", l.ID),
			slog.Any("error", err),
		)
		return
	}

	p.enqueuer.EnqueueJob(ctx, domain.JobTypeDeliverWebhook, payload)
	metrics.PollerRequeued.Inc()

	p.logger.Debug("Webhook log requeued",
		slog.String("log_id", l.ID),
		slog.Int("attempts", l.Attempts),
	)
}
