// Package queue carries jobs from producers to the dispatcher.
//
// A job is removed from the queue before its handler runs. A worker crash
// during handling loses the job; there is no redelivery.
package queue

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/metrics"
)

// ErrClosed is returned by Dequeue once the underlying transport is gone
var ErrClosed = errors.New("queue closed")

// Queue is a FIFO job queue. Enqueue must not block on consumers and
// Dequeue blocks until a job is available or ctx is done.
type Queue interface {
	Enqueue(ctx context.Context, job domain.Job) error
	Dequeue(ctx context.Context) (domain.Job, error)
}

// Producer is the enqueue entry point used by the API layer and by handlers.
// Queue errors are logged and never returned to the caller.
type Producer struct {
	queue  Queue
	logger *slog.Logger
}

// NewProducer creates a new Producer
func NewProducer(q Queue, logger *slog.Logger) *Producer {
	return &Producer{queue: q, logger: logger}
}

// EnqueueJob appends a job to the tail of the queue
func (p *Producer) EnqueueJob(ctx context.Context, jobType string, payload []byte) {
	err := p.queue.Enqueue(ctx, domain.Job{Type: jobType, Payload: payload})
	if err != nil {
		metrics.JobsEnqueued.WithLabelValues(jobType, "error").Inc()
		p.logger.Error("Failed to enqueue job",
			slog.String("job_type", jobType),
			slog.Int("payload_size", len(payload)),
			slog.Any("error", err),
		)
		return
	}

	metrics.JobsEnqueued.WithLabelValues(jobType, "success").Inc()
	p.logger.Debug("Job enqueued", slog.String("job_type", jobType))
}
