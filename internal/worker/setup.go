package worker

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cuongbtq/payment-gateway/internal/clock"
	"github.com/cuongbtq/payment-gateway/internal/config"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/processor"
	"github.com/cuongbtq/payment-gateway/internal/queue"
	"github.com/cuongbtq/payment-gateway/internal/webhook"
	"github.com/cuongbtq/payment-gateway/internal/worker/handlers"
	"github.com/cuongbtq/payment-gateway/internal/worker/storage"
	"github.com/jmoiron/sqlx"
)

// Setup assembles a Worker from configuration: the Postgres-backed handlers,
// the dispatcher over q and, when enabled, the retry poller.
func Setup(cfg *config.Config, logger *slog.Logger, db *sqlx.DB, q queue.Queue) (*Worker, error) {
	proc, err := NewProcessor(&cfg.Processor)
	if err != nil {
		return nil, err
	}

	clk := clock.Real{}
	store := storage.NewStorage(db, logger)
	producer := queue.NewProducer(q, logger)
	sender := webhook.NewSender(webhook.NewHTTPTransport(webhook.TransportConfig{
		ConnectTimeout: cfg.Webhook.ConnectTimeout,
		RequestTimeout: cfg.Webhook.RequestTimeout,
	}))

	dispatcher := NewDispatcher(&DispatcherConfig{
		Logger: logger,
		Queue:  q,
		Handlers: map[string]Handler{
			domain.JobTypeProcessPayment: handlers.NewPaymentHandler(store, proc, producer, clk, logger),
			domain.JobTypeProcessRefund:  handlers.NewRefundHandler(store, proc, producer, clk, logger),
			domain.JobTypeDeliverWebhook: handlers.NewWebhookHandler(store, sender, clk, logger),
		},
		WorkerID:            workerID(),
		Concurrency:         cfg.Worker.Concurrency,
		JobTimeout:          cfg.Worker.JobTimeout,
		DequeueErrorBackoff: cfg.Worker.DequeueErrorBackoff,
	})

	var poller *RetryPoller
	if cfg.RetryPoller.Enabled {
		pollerCfg := &PollerConfig{
			Logger:    logger,
			Store:     store,
			Enqueuer:  producer,
			Clock:     clk,
			Interval:  cfg.RetryPoller.Interval,
			BatchSize: cfg.RetryPoller.BatchSize,
		}
		if cfg.RetryPoller.SingleOwner {
			pollerCfg.Locker = storage.NewAdvisoryLocker(db, storage.RetryPollerLockKey, logger)
		}
		poller = NewRetryPoller(pollerCfg)
	}

	return NewWorker(&Config{
		Logger:     logger,
		Dispatcher: dispatcher,
		Poller:     poller,
	}), nil
}

// NewProcessor builds the payment processor named by cfg.Type
func NewProcessor(cfg *config.ProcessorConfig) (processor.Processor, error) {
	switch cfg.Type {
	case config.ProcessorSimulated, "":
		simCfg := processor.DefaultSimulatedConfig()
		if cfg.TestMode {
			simCfg = processor.TestModeSimulatedConfig()
		}
		return processor.NewSimulated(simCfg, nil), nil
	case config.ProcessorHTTP:
		return processor.NewHTTP(processor.HTTPConfig{
			BaseURL: cfg.HTTP.BaseURL,
			APIKey:  cfg.HTTP.APIKey,
			Timeout: cfg.HTTP.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown processor type: %q", cfg.Type)
	}
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		return fmt.Sprintf("worker-%d", os.Getpid())
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
