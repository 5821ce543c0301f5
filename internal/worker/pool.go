package worker

import (
	"context"
	"fmt"
	"log/slog"
)

// spawnWorkerPool spawns N consumer goroutines based on concurrency configuration
func (d *Dispatcher) spawnWorkerPool(ctx context.Context) {
	d.logger.Info("Spawning worker pool",
		slog.Int("concurrency", d.concurrency),
		slog.String("worker_id", d.workerID),
	)

	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go d.workerLoop(ctx, i)
	}

	d.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", d.concurrency),
	)
}

// workerLoop is the main processing loop for each consumer goroutine
func (d *Dispatcher) workerLoop(ctx context.Context, workerNum int) {
	defer d.wg.Done()

	workerName := fmt.Sprintf("%s-%d", d.workerID, workerNum)
	d.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		job, ok := d.nextJob(ctx, workerName)
		if !ok {
			d.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return
		}

		d.processJob(ctx, workerName, job)
	}
}
