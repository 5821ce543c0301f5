package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawPayload = `{"merchant_id":"m1","event":"payment.success","data":{"payment_id":"pay_0123456789abcdef"}}`

func firstDeliveryJob(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(domain.WebhookJob{Payload: json.RawMessage(rawPayload)})
	require.NoError(t, err)
	return b
}

func retryJob(t *testing.T, logID string) []byte {
	t.Helper()
	b, err := json.Marshal(domain.WebhookJob{LogID: logID, Payload: json.RawMessage(rawPayload)})
	require.NoError(t, err)
	return b
}

func onlyLog(t *testing.T, f *fixture) domain.WebhookLog {
	t.Helper()
	logs, err := f.store.ListWebhookLogs(context.Background(), "m1", 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	return logs[0]
}

func TestWebhookHandler_FirstDeliverySuccess(t *testing.T) {
	f := newFixture()
	f.store.AddMerchant(newMerchant("m1", "https://merchant.example.com/hooks"))

	require.NoError(t, f.webhookHandler().Handle(context.Background(), firstDeliveryJob(t)))

	calls := f.transport.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "https://merchant.example.com/hooks", calls[0].url)
	assert.Equal(t, rawPayload, string(calls[0].body))
	assert.Equal(t, "application/json", calls[0].headers["Content-Type"])
	assert.Equal(t, webhook.Sign("whsec_m1", []byte(rawPayload)), calls[0].headers[webhook.SignatureHeader])

	l := onlyLog(t, f)
	assert.Equal(t, domain.WebhookStatusSuccess, l.Status)
	assert.Equal(t, 1, l.Attempts)
	assert.Equal(t, domain.EventPaymentSuccess, l.Event)
	assert.Equal(t, int32(200), l.ResponseCode.Int32)
	assert.Equal(t, "ok", l.ResponseBody.String)
	assert.Equal(t, testNow, l.LastAttemptAt.Time)
	assert.False(t, l.NextRetryAt.Valid)
	assert.JSONEq(t, rawPayload, string(l.Payload))
}

func TestWebhookHandler_NoURLSkipsSilently(t *testing.T) {
	f := newFixture()
	f.store.AddMerchant(newMerchant("m1", ""))

	require.NoError(t, f.webhookHandler().Handle(context.Background(), firstDeliveryJob(t)))

	assert.Empty(t, f.transport.Calls())
	logs, err := f.store.ListWebhookLogs(context.Background(), "m1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestWebhookHandler_FailureSchedulesRetry(t *testing.T) {
	f := newFixture()
	f.store.AddMerchant(newMerchant("m1", "https://merchant.example.com/hooks"))
	f.transport.responses = []webhook.Response{{StatusCode: 503, Body: "down"}}

	require.NoError(t, f.webhookHandler().Handle(context.Background(), firstDeliveryJob(t)))

	l := onlyLog(t, f)
	assert.Equal(t, domain.WebhookStatusPending, l.Status)
	assert.Equal(t, 1, l.Attempts)
	assert.Equal(t, int32(503), l.ResponseCode.Int32)
	require.True(t, l.NextRetryAt.Valid)
	assert.Equal(t, testNow.Add(60*time.Second), l.NextRetryAt.Time)
}

func TestWebhookHandler_NetworkErrorIsRecordedAs500(t *testing.T) {
	f := newFixture()
	f.store.AddMerchant(newMerchant("m1", "https://merchant.example.com/hooks"))
	f.transport.err = errNetwork

	require.NoError(t, f.webhookHandler().Handle(context.Background(), firstDeliveryJob(t)))

	l := onlyLog(t, f)
	assert.Equal(t, domain.WebhookStatusPending, l.Status)
	assert.Equal(t, int32(500), l.ResponseCode.Int32)
	assert.True(t, strings.HasPrefix(l.ResponseBody.String, "Network Error: "))
	assert.Contains(t, l.ResponseBody.String, "i/o timeout")
}

func TestWebhookHandler_RetryCeiling(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.AddMerchant(newMerchant("m1", "https://merchant.example.com/hooks"))
	f.transport.responses = []webhook.Response{{StatusCode: 500, Body: "boom"}}
	h := f.webhookHandler()

	require.NoError(t, h.Handle(ctx, firstDeliveryJob(t)))
	logID := onlyLog(t, f).ID

	for attempt := 2; attempt <= domain.MaxWebhookAttempts; attempt++ {
		f.clock.Advance(61 * time.Second)
		require.NoError(t, h.Handle(ctx, retryJob(t, logID)))

		l, err := f.store.GetWebhookLog(ctx, logID)
		require.NoError(t, err)
		assert.Equal(t, attempt, l.Attempts)
		if attempt < domain.MaxWebhookAttempts {
			assert.Equal(t, domain.WebhookStatusPending, l.Status)
		}
	}

	l, err := f.store.GetWebhookLog(ctx, logID)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookStatusFailed, l.Status)
	assert.Equal(t, domain.MaxWebhookAttempts, l.Attempts)
	assert.False(t, l.NextRetryAt.Valid)

	// a late job for a dead-lettered log is dropped
	require.NoError(t, h.Handle(ctx, retryJob(t, logID)))
	assert.Len(t, f.transport.Calls(), domain.MaxWebhookAttempts)

	l, err = f.store.GetWebhookLog(ctx, logID)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxWebhookAttempts, l.Attempts)
}

func TestWebhookHandler_RetryUsesStoredPayload(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.AddMerchant(newMerchant("m1", "https://merchant.example.com/hooks"))
	f.transport.responses = []webhook.Response{{StatusCode: 500}, {StatusCode: 200}}
	h := f.webhookHandler()

	require.NoError(t, h.Handle(ctx, firstDeliveryJob(t)))
	logID := onlyLog(t, f).ID

	require.NoError(t, h.Handle(ctx, retryJob(t, logID)))

	calls := f.transport.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].body, calls[1].body)
	assert.Equal(t, calls[0].headers[webhook.SignatureHeader], calls[1].headers[webhook.SignatureHeader])

	l, err := f.store.GetWebhookLog(ctx, logID)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookStatusSuccess, l.Status)
	assert.Equal(t, 2, l.Attempts)
}

func TestWebhookHandler_InvalidPayload(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "pay_1"},
		{name: "inner payload not an object", payload: `{"payload":"oops"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.webhookHandler().Handle(context.Background(), []byte(tt.payload))
			assert.ErrorIs(t, err, domain.ErrInvalidPayload)
		})
	}
}

func TestWebhookHandler_UnknownMerchant(t *testing.T) {
	f := newFixture()
	err := f.webhookHandler().Handle(context.Background(), firstDeliveryJob(t))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// heldTransport blocks its first call until released and fails it; later
// calls succeed immediately
type heldTransport struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (h *heldTransport) Post(ctx context.Context, _ string, _ map[string]string, _ []byte) (webhook.Response, error) {
	h.mu.Lock()
	h.calls++
	n := h.calls
	h.mu.Unlock()

	if n == 1 {
		close(h.entered)
		select {
		case <-h.release:
		case <-ctx.Done():
			return webhook.Response{}, ctx.Err()
		}
		return webhook.Response{StatusCode: 500, Body: "late failure"}, nil
	}
	return webhook.Response{StatusCode: 200, Body: "ok"}, nil
}

func TestWebhookHandler_ConcurrentRetriesKeepSuccessTerminal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.AddMerchant(newMerchant("m1", "https://merchant.example.com/hooks"))

	f.transport.responses = []webhook.Response{{StatusCode: 500, Body: "boom"}}
	require.NoError(t, f.webhookHandler().Handle(ctx, firstDeliveryJob(t)))
	logID := onlyLog(t, f).ID

	held := &heldTransport{entered: make(chan struct{}), release: make(chan struct{})}
	h := NewWebhookHandler(f.store, webhook.NewSender(held), f.clock, discardLogger())

	job := retryJob(t, logID)
	slow := make(chan error, 1)
	go func() {
		slow <- h.Handle(ctx, job)
	}()
	<-held.entered

	require.NoError(t, h.Handle(ctx, job))
	l, err := f.store.GetWebhookLog(ctx, logID)
	require.NoError(t, err)
	require.Equal(t, domain.WebhookStatusSuccess, l.Status)
	require.Equal(t, 2, l.Attempts)

	close(held.release)
	require.NoError(t, <-slow)

	l, err = f.store.GetWebhookLog(ctx, logID)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookStatusSuccess, l.Status)
	assert.Equal(t, 2, l.Attempts)
	assert.Equal(t, int32(200), l.ResponseCode.Int32)
	assert.False(t, l.NextRetryAt.Valid)
}

func TestWebhookHandler_RetryWithoutURLFailsLog(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.AddMerchant(newMerchant("m1", "https://merchant.example.com/hooks"))
	f.transport.responses = []webhook.Response{{StatusCode: 500, Body: "boom"}}
	h := f.webhookHandler()

	require.NoError(t, h.Handle(ctx, firstDeliveryJob(t)))
	logID := onlyLog(t, f).ID

	// merchant removes its webhook URL before the retry
	f.store.AddMerchant(newMerchant("m1", ""))
	f.clock.Advance(61 * time.Second)
	require.NoError(t, h.Handle(ctx, retryJob(t, logID)))

	assert.Len(t, f.transport.Calls(), 1)

	l, err := f.store.GetWebhookLog(ctx, logID)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookStatusFailed, l.Status)
	assert.Equal(t, 1, l.Attempts)
	assert.Equal(t, WebhookURLMissingBody, l.ResponseBody.String)
	assert.False(t, l.NextRetryAt.Valid)

	due, err := f.store.ListDueWebhookLogs(ctx, f.clock.Now().Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}
