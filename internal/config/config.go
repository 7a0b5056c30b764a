package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// DefaultNotifyChannel is the channel the jobs insert trigger notifies
	// (migrations/00002_notify_job_queued.sql). It is the only accepted value.
	DefaultNotifyChannel = "job_queued"
	// DefaultPollInterval is the polling delay when a queue does not set one
	DefaultPollInterval = 10 * time.Second
	// DefaultTrigger is used when a queue does not name one
	DefaultTrigger = "poll"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Worker     WorkerConfig     `yaml:"worker"`
	Webhooks   WebhooksConfig   `yaml:"webhooks"`
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
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration.
// It is optional: producers publish job ids only when enabled, and only
// queues using the amqp trigger consume from it.
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration. Name is a prefix; each
// job queue consumes from "<name>.<job queue>".
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
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

// MigrationsConfig controls schema migrations at startup
type MigrationsConfig struct {
	AutoMigrate bool   `yaml:"auto_migrate"`
	Table       string `yaml:"table"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	NotifyChannel string        `yaml:"notify_channel"`
	InProcess     bool          `yaml:"in_process"`
	Queues        []QueueWorker `yaml:"queues"`
}

// QueueWorker tunes the worker of one job queue
type QueueWorker struct {
	Name             string        `yaml:"name"`
	Trigger          string        `yaml:"trigger"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	MaxJobsPerSecond float64       `yaml:"max_jobs_per_second"`
	Drain            bool          `yaml:"drain"`
}

// WebhooksConfig holds outbound chat webhook URLs used by the relay jobs
type WebhooksConfig struct {
	SlackURL   string        `yaml:"slack_url"`
	DiscordURL string        `yaml:"discord_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Load reads the configuration file, expands ${VAR} references from the
// environment and parses it.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment references in data and decodes it
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills unset optional values
func (c *Config) ApplyDefaults() {
	if c.Worker.NotifyChannel == "" {
		c.Worker.NotifyChannel = DefaultNotifyChannel
	}

	for i := range c.Worker.Queues {
		q := &c.Worker.Queues[i]
		if q.Trigger == "" {
			q.Trigger = DefaultTrigger
		}
		if q.PollInterval == 0 {
			q.PollInterval = DefaultPollInterval
		}
	}

	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Webhooks.Timeout == 0 {
		c.Webhooks.Timeout = 10 * time.Second
	}
}

// Queue returns the settings of the named job queue
func (c *Config) Queue(name string) (QueueWorker, bool) {
	for _, q := range c.Worker.Queues {
		if q.Name == name {
			return q, true
		}
	}
	return QueueWorker{}, false
}

// ValidateAPIConfig checks the settings the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	return c.validateRabbitMQ()
}

// ValidateWorkerConfig checks the settings the worker service needs.
// Handler conformance is checked later when the worker registry is built.
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if len(c.Worker.Queues) == 0 {
		return fmt.Errorf("at least one worker queue is required")
	}

	seen := make(map[string]bool, len(c.Worker.Queues))
	var dups []string
	usesAMQP := false
	for _, q := range c.Worker.Queues {
		if q.Name == "" {
			return fmt.Errorf("worker queue name is required")
		}
		if seen[q.Name] {
			dups = append(dups, q.Name)
		}
		seen[q.Name] = true

		switch q.Trigger {
		case "poll", "notify":
		case "amqp":
			usesAMQP = true
		default:
			return fmt.Errorf("worker queue %s: unknown trigger %q (must be poll, notify or amqp)", q.Name, q.Trigger)
		}

		if q.PollInterval <= 0 {
			return fmt.Errorf("worker queue %s: poll_interval must be greater than 0", q.Name)
		}

		if q.MaxJobsPerSecond <= 0 {
			return fmt.Errorf("worker queue %s: max_jobs_per_second must be greater than 0", q.Name)
		}
	}

	if len(dups) > 0 {
		return fmt.Errorf("duplicate queues: %s", strings.Join(dups, ", "))
	}

	if usesAMQP && !c.RabbitMQ.Enabled {
		return fmt.Errorf("rabbitmq must be enabled for queues using the amqp trigger")
	}

	if c.Worker.NotifyChannel == "" {
		return fmt.Errorf("worker notify_channel is required")
	}

	// the jobs insert trigger only ever notifies DefaultNotifyChannel
	if c.Worker.NotifyChannel != DefaultNotifyChannel {
		return fmt.Errorf("worker notify_channel %q does not match the jobs insert trigger channel %q",
			c.Worker.NotifyChannel, DefaultNotifyChannel)
	}

	return c.validateRabbitMQ()
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if !c.RabbitMQ.Enabled {
		return nil
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	return nil
}
