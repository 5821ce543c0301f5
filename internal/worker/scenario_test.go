package worker_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/clock"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/queue"
	"github.com/cuongbtq/payment-gateway/internal/storage/inmemory"
	"github.com/cuongbtq/payment-gateway/internal/webhook"
	"github.com/cuongbtq/payment-gateway/internal/worker"
	"github.com/cuongbtq/payment-gateway/internal/worker/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableURL returns a loopback URL nobody listens on
func unreachableURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr + "/webhooks"
}

func TestWebhookToUnreachableURLIsDeadLetteredAfterFiveAttempts(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	store := inmemory.NewStore()
	store.AddMerchant(domain.Merchant{
		ID:            "m1",
		WebhookURL:    sql.NullString{String: unreachableURL(t), Valid: true},
		WebhookSecret: sql.NullString{String: "whsec", Valid: true},
	})

	q := queue.NewMemory()
	producer := queue.NewProducer(q, logger)
	sender := webhook.NewSender(webhook.NewHTTPTransport(webhook.TransportConfig{ConnectTimeout: time.Second}))

	dispatcher := worker.NewDispatcher(&worker.DispatcherConfig{
		Logger: logger,
		Queue:  q,
		Handlers: map[string]worker.Handler{
			domain.JobTypeDeliverWebhook: handlers.NewWebhookHandler(store, sender, clk, logger),
		},
		WorkerID:    "scenario",
		Concurrency: 2,
	})
	poller := worker.NewRetryPoller(&worker.PollerConfig{
		Logger:   logger,
		Store:    store,
		Enqueuer: producer,
		Clock:    clk,
	})

	go func() { _ = dispatcher.Run(ctx) }()

	require.NoError(t, handlers.EnqueueWebhook(ctx, producer, "m1", domain.EventPaymentSuccess, domain.WebhookData{PaymentID: "pay_1"}))

	var logID string
	require.Eventually(t, func() bool {
		logs, err := store.ListWebhookLogs(ctx, "m1", 10, 0)
		if err != nil || len(logs) != 1 || logs[0].Attempts != 1 {
			return false
		}
		logID = logs[0].ID
		return true
	}, 5*time.Second, 10*time.Millisecond)

	attemptsAt := func() *domain.WebhookLog {
		l, err := store.GetWebhookLog(ctx, logID)
		require.NoError(t, err)
		return l
	}

	for attempt := 1; attempt < domain.MaxWebhookAttempts; attempt++ {
		l := attemptsAt()
		assert.Equal(t, domain.WebhookStatusPending, l.Status, "attempt %d", attempt)
		assert.Equal(t, int32(500), l.ResponseCode.Int32)
		assert.Contains(t, l.ResponseBody.String, "Network Error: ")
		assert.Equal(t, clk.Now().Add(domain.WebhookRetryDelay), l.NextRetryAt.Time)

		// not yet due
		poller.Poll(ctx)
		assert.Equal(t, attempt, attemptsAt().Attempts)

		clk.Advance(domain.WebhookRetryDelay + time.Second)
		poller.Poll(ctx)

		want := attempt + 1
		require.Eventually(t, func() bool {
			l, err := store.GetWebhookLog(ctx, logID)
			return err == nil && l.Attempts == want
		}, 5*time.Second, 10*time.Millisecond)
	}

	final := attemptsAt()
	assert.Equal(t, domain.WebhookStatusFailed, final.Status)
	assert.Equal(t, domain.MaxWebhookAttempts, final.Attempts)
	assert.False(t, final.NextRetryAt.Valid)

	// no sixth attempt is ever scheduled
	clk.Advance(24 * time.Hour)
	poller.Poll(ctx)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, domain.MaxWebhookAttempts, attemptsAt().Attempts)
	assert.Equal(t, domain.WebhookStatusFailed, attemptsAt().Status)
}
