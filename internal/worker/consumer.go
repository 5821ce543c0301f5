package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
)

// nextJob blocks until a job is dequeued. Dequeue errors are logged and
// retried after the configured backoff. ok is false once ctx is done.
func (d *Dispatcher) nextJob(ctx context.Context, workerName string) (domain.Job, bool) {
	for {
		job, err := d.queue.Dequeue(ctx)
		if err == nil {
			return job, true
		}

		if ctx.Err() != nil {
			return domain.Job{}, false
		}

		d.logger.Error("Failed to dequeue job",
			slog.String("worker_name", workerName),
			slog.Duration("retry_after", d.dequeueErrorBackoff),
			slog.Any("error", err),
		)

		timer := time.NewTimer(d.dequeueErrorBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.Job{}, false
		case <-timer.C:
		}
	}
}
