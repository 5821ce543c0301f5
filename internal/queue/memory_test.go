package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_FIFO(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, domain.Job{Type: domain.JobTypeProcessPayment, Payload: []byte(fmt.Sprintf("pay_%d", i))}))
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("pay_%d", i), string(job.Payload))
	}
	assert.Equal(t, 0, q.Len())
}

func TestMemory_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewMemory()

	got := make(chan domain.Job, 1)
	go func() {
		job, err := q.Dequeue(context.Background())
		if err == nil {
			got <- job
		}
	}()

	select {
	case <-got:
		t.Fatal("dequeue returned before any job was enqueued")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Enqueue(context.Background(), domain.Job{Type: domain.JobTypeProcessRefund, Payload: []byte("rfnd_1")}))

	select {
	case job := <-got:
		assert.Equal(t, domain.JobTypeProcessRefund, job.Type)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake up")
	}
}

func TestMemory_DequeueHonoursCancellation(t *testing.T) {
	q := NewMemory()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemory_ConcurrentConsumersDrainEverything(t *testing.T) {
	q := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const jobs = 200
	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := q.Dequeue(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[string(job.Payload)]++
				done := len(seen) == jobs
				mu.Unlock()
				if done {
					cancel()
				}
			}
		}()
	}

	for i := 0; i < jobs; i++ {
		require.NoError(t, q.Enqueue(context.Background(), domain.Job{Type: domain.JobTypeDeliverWebhook, Payload: []byte(fmt.Sprintf("%d", i))}))
	}

	wg.Wait()
	assert.Len(t, seen, jobs)
	for payload, n := range seen {
		assert.Equal(t, 1, n, "job %s consumed more than once", payload)
	}
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, domain.Job) error {
	return ErrClosed
}

func (failingQueue) Dequeue(context.Context) (domain.Job, error) {
	return domain.Job{}, ErrClosed
}

func TestProducer_EnqueueJob(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("success", func(t *testing.T) {
		q := NewMemory()
		before := testutil.ToFloat64(metrics.JobsEnqueued.WithLabelValues(domain.JobTypeProcessPayment, "success"))

		NewProducer(q, logger).EnqueueJob(context.Background(), domain.JobTypeProcessPayment, []byte("pay_0123456789abcdef"))

		job, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.JobTypeProcessPayment, job.Type)
		assert.Equal(t, "pay_0123456789abcdef", string(job.Payload))
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.JobsEnqueued.WithLabelValues(domain.JobTypeProcessPayment, "success")))
	})

	t.Run("queue error is swallowed and counted", func(t *testing.T) {
		before := testutil.ToFloat64(metrics.JobsEnqueued.WithLabelValues(domain.JobTypeProcessRefund, "error"))

		assert.NotPanics(t, func() {
			NewProducer(failingQueue{}, logger).EnqueueJob(context.Background(), domain.JobTypeProcessRefund, []byte("rfnd_1"))
		})

		assert.Equal(t, before+1, testutil.ToFloat64(metrics.JobsEnqueued.WithLabelValues(domain.JobTypeProcessRefund, "error")))
	})
}
