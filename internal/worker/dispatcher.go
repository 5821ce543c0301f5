package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/queue"
)

// Handler executes one job payload
type Handler interface {
	Handle(ctx context.Context, payload []byte) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, payload []byte) error

func (f HandlerFunc) Handle(ctx context.Context, payload []byte) error {
	return f(ctx, payload)
}

// DispatcherConfig holds dispatcher dependencies
type DispatcherConfig struct {
	Logger              *slog.Logger
	Queue               queue.Queue
	Handlers            map[string]Handler
	WorkerID            string
	Concurrency         int
	JobTimeout          time.Duration
	DequeueErrorBackoff time.Duration
}

// Dispatcher runs N consumer loops that route jobs to handlers by type.
// A failing job never stops a loop.
type Dispatcher struct {
	logger              *slog.Logger
	queue               queue.Queue
	handlers            map[string]Handler
	workerID            string
	concurrency         int
	jobTimeout          time.Duration
	dequeueErrorBackoff time.Duration
	wg                  sync.WaitGroup
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(cfg *DispatcherConfig) *Dispatcher {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	backoff := cfg.DequeueErrorBackoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}

	return &Dispatcher{
		logger:              cfg.Logger,
		queue:               cfg.Queue,
		handlers:            cfg.Handlers,
		workerID:            cfg.WorkerID,
		concurrency:         concurrency,
		jobTimeout:          cfg.JobTimeout,
		dequeueErrorBackoff: backoff,
	}
}

// Run blocks until ctx is canceled and every consumer loop has returned
func (d *Dispatcher) Run(ctx context.Context) error {
	d.spawnWorkerPool(ctx)
	d.wg.Wait()

	d.logger.Info("Dispatcher stopped", slog.String("worker_id", d.workerID))
	return nil
}
