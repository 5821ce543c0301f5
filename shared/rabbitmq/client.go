package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned when the client has no open channel
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config holds RabbitMQ connection configuration
type Config struct {
	Host              string
	Port              int
	User              string
	Password          string
	VHost             string
	ExchangeName      string
	ExchangeType      string
	ExchangeDurable   bool
	QueueName         string
	QueueDurable      bool
	RoutingKey        string
	RetryAttempts     int
	RetryInterval     time.Duration
	Heartbeat         time.Duration
	ConnectionTimeout time.Duration
	PrefetchCount     int
	PublishRetries    int
	PublishRetryDelay time.Duration
}

// Client is a process-wide RabbitMQ connection with a single channel. A
// closed connection or channel is reopened on the next Publish or Consume.
type Client struct {
	config *Config
	logger *slog.Logger

	// guards conn and channel
	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	// guards publishes on the shared channel
	publishMu sync.Mutex
}

// NewClient dials RabbitMQ and declares the job exchange and queue
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}

	client.mu.Lock()
	err := client.connect()
	client.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

func (c *Client) dsn() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)
}

// connect dials and opens the channel; callers hold c.mu
func (c *Client) connect() error {
	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		dialCfg := amqp.Config{
			Heartbeat: c.config.Heartbeat,
			Locale:    "en_US",
		}
		if c.config.ConnectionTimeout > 0 {
			dialCfg.Dial = amqp.DefaultDial(c.config.ConnectionTimeout)
		}

		c.conn, err = amqp.DialConfig(c.dsn(), dialCfg)
		if err == nil {
			break
		}

		c.logger.Warn("Failed to connect to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Any("error", err),
		)

		if attempt < attempts {
			time.Sleep(c.config.RetryInterval)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := c.declareTopology(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
	)

	return nil
}

// reopen restores the channel, redialing first if the connection is gone
func (c *Client) reopen() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected() {
		return nil
	}

	if c.conn != nil && !c.conn.IsClosed() {
		channel, err := c.conn.Channel()
		if err == nil {
			c.channel = channel
			if err = c.declareTopology(); err == nil {
				c.logger.Info("RabbitMQ channel reopened")
				return nil
			}
		}
		c.logger.Warn("Failed to reopen RabbitMQ channel, redialing", slog.Any("error", err))
		c.conn.Close()
	}

	if err := c.connect(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// open returns the current channel, reopening it when closed
func (c *Client) open() (*amqp.Channel, error) {
	c.mu.RLock()
	if c.connected() {
		channel := c.channel
		c.mu.RUnlock()
		return channel, nil
	}
	c.mu.RUnlock()

	if err := c.reopen(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel, nil
}

// declareTopology declares the exchange, the job queue and their binding
func (c *Client) declareTopology() error {
	if err := c.channel.ExchangeDeclare(c.config.ExchangeName, c.config.ExchangeType, c.config.ExchangeDurable, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := c.channel.QueueDeclare(c.config.QueueName, c.config.QueueDurable, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := c.channel.QueueBind(c.config.QueueName, c.config.RoutingKey, c.config.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Publish sends a persistent message to the job exchange, retrying with
// exponential backoff on channel errors
func (c *Client) Publish(ctx context.Context, body []byte, contentType string) error {
	channel, err := c.open()
	if err != nil {
		return err
	}

	retries := max(c.config.PublishRetries, 0)
	delay := c.config.PublishRetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	msg := amqp.Publishing{
		ContentType:  contentType,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		msg.Timestamp = time.Now()

		c.publishMu.Lock()
		lastErr = channel.PublishWithContext(ctx, c.config.ExchangeName, c.config.RoutingKey, false, false, msg)
		c.publishMu.Unlock()

		if lastErr == nil {
			return nil
		}

		if channel.IsClosed() {
			if channel, err = c.open(); err != nil {
				return err
			}
		}

		if attempt < retries {
			backoff := delay << attempt
			c.logger.Warn("Publish to RabbitMQ failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("retry_after", backoff),
				slog.Any("error", lastErr),
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed to publish message after %d attempts: %w", retries+1, lastErr)
}

// Consume registers a consumer on the job queue with manual acknowledgement.
// The returned channel is closed when the broker channel closes.
func (c *Client) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	channel, err := c.open()
	if err != nil {
		return nil, err
	}

	if c.config.PrefetchCount > 0 {
		if err := channel.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return nil, fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	deliveries, err := channel.Consume(c.config.QueueName, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	c.logger.Info("Started consuming messages from RabbitMQ",
		slog.String("queue", c.config.QueueName),
		slog.String("consumer_tag", consumerTag),
	)

	return deliveries, nil
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected()
}

// connected reports whether conn and channel are open; callers hold c.mu
func (c *Client) connected() bool {
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

// Close closes the channel and the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel", slog.Any("error", err))
		}
	}

	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
		}
	}

	c.logger.Info("RabbitMQ connection closed")
	return nil
}
