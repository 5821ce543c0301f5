package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(q queue.Queue, handled *atomic.Int32) *Worker {
	return NewWorker(&Config{
		Logger: discardLogger(),
		Dispatcher: NewDispatcher(&DispatcherConfig{
			Logger: discardLogger(),
			Queue:  q,
			Handlers: map[string]Handler{
				domain.JobTypeProcessPayment: HandlerFunc(func(context.Context, []byte) error {
					handled.Add(1)
					return nil
				}),
			},
			WorkerID:    "test-worker",
			Concurrency: 2,
		}),
	})
}

func TestWorker_StopBeforeStart(t *testing.T) {
	q := queue.NewMemory()
	var handled atomic.Int32
	w := newTestWorker(q, &handled)

	w.Stop()

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start after Stop did not return")
	}

	require.NoError(t, q.Enqueue(context.Background(), domain.Job{Type: domain.JobTypeProcessPayment, Payload: []byte("pay_1")}))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, handled.Load())
}

func TestWorker_StopWaitsForComponents(t *testing.T) {
	q := queue.NewMemory()
	var handled atomic.Int32
	w := newTestWorker(q, &handled)

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	require.NoError(t, q.Enqueue(context.Background(), domain.Job{Type: domain.JobTypeProcessPayment, Payload: []byte("pay_1")}))
	require.Eventually(t, func() bool { return handled.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	require.NoError(t, <-done)
}
