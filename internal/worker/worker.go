// Package worker runs the job dispatcher and the webhook retry poller.
package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Config holds worker configuration
type Config struct {
	Logger     *slog.Logger
	Dispatcher *Dispatcher
	// Poller is optional
	Poller *RetryPoller
}

// Worker runs the dispatcher and the retry poller side by side
type Worker struct {
	logger     *slog.Logger
	dispatcher *Dispatcher
	poller     *RetryPoller
	wg         sync.WaitGroup

	// guards cancel and stopped
	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:     cfg.Logger,
		dispatcher: cfg.Dispatcher,
		poller:     cfg.Poller,
	}
}

// Start runs the components and blocks until ctx is canceled or Stop is
// called. Start after Stop returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		w.logger.Info("Worker already stopped, not starting")
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	if w.poller != nil {
		w.wg.Add(1)
	}
	w.mu.Unlock()

	w.logger.Info("Starting worker", slog.Bool("retry_poller", w.poller != nil))

	go func() {
		defer w.wg.Done()
		if err := w.dispatcher.Run(ctx); err != nil {
			w.logger.Error("Dispatcher exited", slog.Any("error", err))
		}
	}()

	if w.poller != nil {
		go func() {
			defer w.wg.Done()
			if err := w.poller.Run(ctx); err != nil {
				w.logger.Error("Retry poller exited", slog.Any("error", err))
			}
		}()
	}

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop cancels the components and waits for them to return
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")

	w.mu.Lock()
	w.stopped = true
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
