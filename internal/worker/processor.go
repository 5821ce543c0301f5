package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/metrics"
)

// processJob routes a job to its handler. Unknown types, handler errors and
// panics are logged and counted; none of them propagate.
func (d *Dispatcher) processJob(ctx context.Context, workerName string, job domain.Job) {
	handler, ok := d.handlers[job.Type]
	if !ok {
		metrics.JobsProcessed.WithLabelValues(job.Type, "unknown").Inc()
		d.logger.Warn("Dropping job with unknown type",
			slog.String("worker_name", workerName),
			slog.String("job_type", job.Type),
		)
		return
	}

	d.logger.Debug("Worker received job",
		slog.String("worker_name", workerName),
		slog.String("job_type", job.Type),
	)

	start := time.Now()
	err := d.execute(ctx, handler, job)
	metrics.JobDuration.WithLabelValues(job.Type).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.JobsProcessed.WithLabelValues(job.Type, "error").Inc()
		d.logger.Error("Job processing failed",
			slog.String("worker_name", workerName),
			slog.String("job_type", job.Type),
			slog.String("payload", string(job.Payload)),
			slog.Any("error", err),
		)
		return
	}

	metrics.JobsProcessed.WithLabelValues(job.Type, "success").Inc()
	d.logger.Debug("Job completed successfully",
		slog.String("worker_name", workerName),
		slog.String("job_type", job.Type),
		slog.Duration("duration", time.Since(start)),
	)
}

// execute runs the handler under the job timeout and converts a panic into an error
func (d *Dispatcher) execute(ctx context.Context, handler Handler, job domain.Job) (err error) {
	if d.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.jobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v\n%s", r, debug.Stack())
		}
	}()

	return handler.Handle(ctx, job.Payload)
}
