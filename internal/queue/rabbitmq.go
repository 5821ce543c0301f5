package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/payment-gateway/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker publishes to and consumes from the job queue. It is satisfied by
// *rabbitmq.Client.
type Broker interface {
	Publish(ctx context.Context, body []byte, contentType string) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// RabbitMQ is a Queue backed by a durable RabbitMQ queue. Deliveries are
// acknowledged as soon as they are received, before any handler runs.
type RabbitMQ struct {
	client      Broker
	consumerTag string
	logger      *slog.Logger

	// guards deliveries; nil until the first Dequeue or after the channel closes
	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitMQ wraps a connected client. consumerTag identifies this process
// when it consumes.
func NewRabbitMQ(client Broker, consumerTag string, logger *slog.Logger) *RabbitMQ {
	return &RabbitMQ{
		client:      client,
		consumerTag: consumerTag,
		logger:      logger,
	}
}

// Enqueue publishes the job envelope
func (r *RabbitMQ) Enqueue(ctx context.Context, job domain.Job) error {
	body, err := json.Marshal(domain.JobMessage{Type: job.Type, Data: string(job.Payload)})
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	if err := r.client.Publish(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	return nil
}

// Dequeue waits for the next delivery, acks it and decodes the envelope.
// Malformed envelopes are logged and skipped. After a failed consume or a
// closed delivery channel the next call consumes again.
func (r *RabbitMQ) Dequeue(ctx context.Context) (domain.Job, error) {
	deliveries, err := r.consume()
	if err != nil {
		return domain.Job{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()

		case delivery, ok := <-deliveries:
			if !ok {
				r.reset(deliveries)
				return domain.Job{}, ErrClosed
			}

			if err := delivery.Ack(false); err != nil {
				r.logger.Error("Failed to ACK delivery",
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
					slog.Any("error", err),
				)
			}

			var msg domain.JobMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil || msg.Type == "" {
				r.logger.Error("Dropping malformed job message",
					slog.String("body", string(delivery.Body)),
					slog.Any("error", err),
				)
				continue
			}

			return domain.Job{Type: msg.Type, Payload: []byte(msg.Data)}, nil
		}
	}
}

// consume returns the shared delivery channel, registering the consumer on
// first use
func (r *RabbitMQ) consume() (<-chan amqp.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deliveries != nil {
		return r.deliveries, nil
	}

	deliveries, err := r.client.Consume(r.consumerTag)
	if err != nil {
		return nil, err
	}
	r.deliveries = deliveries

	return deliveries, nil
}

// reset drops a closed delivery channel unless another caller already replaced it
func (r *RabbitMQ) reset(closed <-chan amqp.Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deliveries == closed {
		r.deliveries = nil
		r.logger.Warn("RabbitMQ delivery channel closed, will consume again")
	}
}
