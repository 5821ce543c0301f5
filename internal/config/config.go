package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Job queue backends
const (
	QueueBackendRabbitMQ = "rabbitmq"
	QueueBackendMemory   = "memory"
)

// Processor implementations
const (
	ProcessorSimulated = "simulated"
	ProcessorHTTP      = "http"
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `yaml:"app"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	JobQueue    JobQueueConfig    `yaml:"job_queue"`
	Logging     LoggingConfig     `yaml:"logging"`
	Worker      WorkerConfig      `yaml:"worker"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	RetryPoller RetryPollerConfig `yaml:"retry_poller"`
	Processor   ProcessorConfig   `yaml:"processor"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	Tag           string `yaml:"tag"`
	PrefetchCount int    `yaml:"prefetch_count"`
}

// JobQueueConfig selects the job queue backend. The memory backend only
// works when the API service runs the worker in-process.
type JobQueueConfig struct {
	Backend string `yaml:"backend"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency         int           `yaml:"concurrency"`
	JobTimeout          time.Duration `yaml:"job_timeout"`
	DequeueErrorBackoff time.Duration `yaml:"dequeue_error_backoff"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`
	MetricsPort         int           `yaml:"metrics_port"`
}

// WebhookConfig holds outbound webhook delivery settings
type WebhookConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// RetryPollerConfig holds the webhook retry poller settings
type RetryPollerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	BatchSize   int           `yaml:"batch_size"`
	SingleOwner bool          `yaml:"single_owner"`
}

// ProcessorConfig selects the payment processor
type ProcessorConfig struct {
	Type     string              `yaml:"type"`
	TestMode bool                `yaml:"test_mode"`
	HTTP     HTTPProcessorConfig `yaml:"http"`
}

// HTTPProcessorConfig holds settings for a remote processor
type HTTPProcessorConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a configuration populated with defaults. Load decodes the
// file on top of it, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "payment-gateway",
			Environment: "development",
		},
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		RabbitMQ: RabbitMQConfig{
			Port:  5672,
			VHost: "/",
			Exchange: ExchangeConfig{
				Name:    "payments_exchange",
				Type:    "direct",
				Durable: true,
			},
			Queue: QueueConfig{
				Name:    "payment_jobs",
				Durable: true,
			},
			RoutingKey: "payment.job",
			Connection: ConnectionConfig{
				RetryAttempts:     5,
				RetryInterval:     2 * time.Second,
				Heartbeat:         10 * time.Second,
				ConnectionTimeout: 10 * time.Second,
			},
			Publish: PublishConfig{
				RetryAttempts: 3,
				RetryInterval: 100 * time.Millisecond,
			},
			Consumer: ConsumerConfig{
				Tag:           "payment-worker",
				PrefetchCount: 10,
			},
		},
		JobQueue: JobQueueConfig{Backend: QueueBackendRabbitMQ},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Worker: WorkerConfig{
			Concurrency:         4,
			JobTimeout:          60 * time.Second,
			DequeueErrorBackoff: 5 * time.Second,
			ShutdownTimeout:     30 * time.Second,
			MetricsPort:         9100,
		},
		Webhook: WebhookConfig{
			ConnectTimeout: 5 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		RetryPoller: RetryPollerConfig{
			Enabled:   true,
			Interval:  10 * time.Second,
			BatchSize: 100,
		},
		Processor: ProcessorConfig{
			Type: ProcessorSimulated,
			HTTP: HTTPProcessorConfig{Timeout: 30 * time.Second},
		},
	}
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Validate checks the settings shared by both services
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		if c.Database.Host == "" {
			return errors.New("database host is required")
		}

		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}

		if c.Database.Database == "" {
			return errors.New("database name is required")
		}
	}

	switch c.JobQueue.Backend {
	case QueueBackendMemory:
	case QueueBackendRabbitMQ:
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown job_queue backend: %q", c.JobQueue.Backend)
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return errors.New("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return errors.New("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return errors.New("rabbitmq queue name is required")
	}

	return nil
}

// ValidateAPIConfig checks the API service settings
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.Validate(); err != nil {
		return err
	}

	// an in-process queue needs an in-process worker
	if c.JobQueue.Backend == QueueBackendMemory {
		return c.ValidateWorkerConfig()
	}

	return nil
}

// ValidateWorkerConfig checks the worker service settings
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return errors.New("worker job_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return errors.New("worker shutdown_timeout must be greater than 0")
	}

	if c.Worker.MetricsPort < 0 || c.Worker.MetricsPort > MaxPort {
		return fmt.Errorf("invalid worker metrics port: %d", c.Worker.MetricsPort)
	}

	if c.RetryPoller.Enabled {
		if c.RetryPoller.Interval <= 0 {
			return errors.New("retry_poller interval must be greater than 0")
		}

		if c.RetryPoller.BatchSize <= 0 {
			return errors.New("retry_poller batch_size must be greater than 0")
		}
	}

	switch c.Processor.Type {
	case ProcessorSimulated:
	case ProcessorHTTP:
		if c.Processor.HTTP.BaseURL == "" {
			return errors.New("processor http base_url is required")
		}
	default:
		return fmt.Errorf("unknown processor type: %q", c.Processor.Type)
	}

	return nil
}
