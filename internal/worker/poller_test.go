package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/clock"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/metrics"
	"github.com/cuongbtq/payment-gateway/internal/storage/inmemory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pollerNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []domain.Job
}

func (r *recordingEnqueuer) EnqueueJob(_ context.Context, jobType string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, domain.Job{Type: jobType, Payload: payload})
}

func (r *recordingEnqueuer) Jobs() []domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Job(nil), r.jobs...)
}

func seedLog(t *testing.T, s *inmemory.Store, id string, attempts int, next time.Time) {
	t.Helper()
	l := &domain.WebhookLog{
		ID:         id,
		MerchantID: "m1",
		Event:      domain.EventPaymentSuccess,
		Payload:    []byte(`{"merchant_id":"m1","event":"payment.success","data":{"payment_id":"pay_1"}}`),
		Status:     domain.WebhookStatusPending,
		Attempts:   attempts,
		CreatedAt:  pollerNow.Add(-time.Hour),
	}
	l.NextRetryAt.Time = next
	l.NextRetryAt.Valid = true
	require.NoError(t, s.CreateWebhookLog(context.Background(), l))
}

func newTestPoller(store PollerStore, enq Enqueuer, locker Locker) *RetryPoller {
	return NewRetryPoller(&PollerConfig{
		Logger:   discardLogger(),
		Store:    store,
		Enqueuer: enq,
		Clock:    clock.NewFake(pollerNow),
		Locker:   locker,
	})
}

func TestRetryPoller_RequeuesDueLogs(t *testing.T) {
	store := inmemory.NewStore()
	enq := &recordingEnqueuer{}
	seedLog(t, store, "due", 2, pollerNow.Add(-time.Second))
	seedLog(t, store, "not-due", 1, pollerNow.Add(time.Second))

	before := testutil.ToFloat64(metrics.PollerRequeued)
	newTestPoller(store, enq, nil).Poll(context.Background())

	jobs := enq.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobTypeDeliverWebhook, jobs[0].Type)

	var job domain.WebhookJob
	require.NoError(t, json.Unmarshal(jobs[0].Payload, &job))
	assert.Equal(t, "due", job.LogID)
	assert.JSONEq(t, `{"merchant_id":"m1","event":"payment.success","data":{"payment_id":"pay_1"}}`, string(job.Payload))

	l, err := store.GetWebhookLog(context.Background(), "due")
	require.NoError(t, err)
	assert.Equal(t, pollerNow.Add(time.Hour), l.NextRetryAt.Time)
	assert.Equal(t, domain.WebhookStatusPending, l.Status)
	assert.Equal(t, 2, l.Attempts)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PollerRequeued))
}

func TestRetryPoller_LeasePreventsDoubleRequeue(t *testing.T) {
	store := inmemory.NewStore()
	enq := &recordingEnqueuer{}
	seedLog(t, store, "due", 1, pollerNow.Add(-time.Second))

	p := newTestPoller(store, enq, nil)
	p.Poll(context.Background())
	p.Poll(context.Background())

	assert.Len(t, enq.Jobs(), 1)
}

func TestRetryPoller_DeadLettersExhaustedLogs(t *testing.T) {
	store := inmemory.NewStore()
	enq := &recordingEnqueuer{}
	seedLog(t, store, "exhausted", domain.MaxWebhookAttempts, pollerNow.Add(-time.Second))

	newTestPoller(store, enq, nil).Poll(context.Background())

	assert.Empty(t, enq.Jobs())
	l, err := store.GetWebhookLog(context.Background(), "exhausted")
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookStatusFailed, l.Status)
}

type brokenStore struct{ PollerStore }

func (brokenStore) ListDueWebhookLogs(context.Context, time.Time, int) ([]domain.WebhookLog, error) {
	return nil, errors.New("connection refused")
}

func TestRetryPoller_StoreErrorIsLogged(t *testing.T) {
	enq := &recordingEnqueuer{}
	before := testutil.ToFloat64(metrics.PollerRuns.WithLabelValues("error"))

	assert.NotPanics(t, func() {
		newTestPoller(brokenStore{}, enq, nil).Poll(context.Background())
	})

	assert.Empty(t, enq.Jobs())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PollerRuns.WithLabelValues("error")))
}

type stubLocker struct {
	ok       bool
	released int
}

func (l *stubLocker) TryLock(context.Context) (func(), bool, error) {
	return func() { l.released++ }, l.ok, nil
}

func TestRetryPoller_SingleOwner(t *testing.T) {
	tests := []struct {
		name         string
		lockAcquired bool
		wantJobs     int
		wantReleased int
	}{
		{name: "lock held elsewhere skips scan", lockAcquired: false, wantJobs: 0, wantReleased: 0},
		{name: "lock acquired scans and releases", lockAcquired: true, wantJobs: 1, wantReleased: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := inmemory.NewStore()
			enq := &recordingEnqueuer{}
			seedLog(t, store, "due", 1, pollerNow.Add(-time.Second))
			locker := &stubLocker{ok: tt.lockAcquired}

			newTestPoller(store, enq, locker).Poll(context.Background())

			assert.Len(t, enq.Jobs(), tt.wantJobs)
			assert.Equal(t, tt.wantReleased, locker.released)
		})
	}
}

func TestRetryPoller_RunTicks(t *testing.T) {
	store := inmemory.NewStore()
	enq := &recordingEnqueuer{}
	seedLog(t, store, "due", 1, pollerNow.Add(-time.Second))

	p := NewRetryPoller(&PollerConfig{
		Logger:   discardLogger(),
		Store:    store,
		Enqueuer: enq,
		Clock:    clock.NewFake(pollerNow),
		Interval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, p.Run(ctx))
	}()

	require.Eventually(t, func() bool { return len(enq.Jobs()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
