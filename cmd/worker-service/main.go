package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/config"
	"github.com/cuongbtq/pgjobqueue/internal/jobs"
	"github.com/cuongbtq/pgjobqueue/internal/supervisor"
	"github.com/cuongbtq/pgjobqueue/internal/worker"
	"github.com/cuongbtq/pgjobqueue/migrations"
	"github.com/cuongbtq/pgjobqueue/shared/logger"
	"github.com/cuongbtq/pgjobqueue/shared/postgresql"
	"github.com/cuongbtq/pgjobqueue/shared/rabbitmq"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	queue := flag.String("queue", "", "Run only the worker of this queue (child mode)")
	inProcess := flag.Bool("inprocess", false, "Run workers as goroutines instead of child processes")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	// Every worker must conform before any of them starts
	registry, err := worker.NewRegistry(jobs.Definitions(cfg)...)
	if err != nil {
		appLogger.Error("Worker validation failed", slog.String("error", err.Error()))
		return err
	}

	infra := worker.Infra{
		Database:      postgresConfig(&cfg.Database),
		RabbitMQ:      rabbitConfig(&cfg.RabbitMQ),
		NotifyChannel: cfg.Worker.NotifyChannel,
		Logger:        appLogger.Logger,
	}

	if *queue != "" {
		return runChild(*queue, registry, infra, appLogger)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.Any("queues", registry.Queues()),
	)

	ctx, stop := supervisor.NotifyContext(context.Background())
	defer stop()

	if cfg.Migrations.AutoMigrate {
		if err := migrate(ctx, &infra.Database, cfg.Migrations.Table, appLogger.Logger); err != nil {
			return err
		}
	}

	var spawner supervisor.Spawner
	if *inProcess || cfg.Worker.InProcess {
		spawner = supervisor.NewInProcessSpawner(registry, func(ctx context.Context, def worker.Definition) error {
			return worker.RunQueue(ctx, def, infra)
		})
	} else {
		spawner, err = supervisor.NewExecSpawner("-config", *configPath)
		if err != nil {
			return err
		}
	}

	if err := supervisor.New(registry, spawner, appLogger.Logger).Run(ctx); err != nil {
		return err
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// runChild runs the worker of one queue. Shutdown signals are ignored: the
// parent process kills its children.
func runChild(queue string, registry *worker.Registry, infra worker.Infra, appLogger *logger.Logger) error {
	supervisor.IgnoreShutdownSignals()

	def, ok := registry.Definition(queue)
	if !ok {
		return fmt.Errorf("no worker registered for queue %s", queue)
	}

	appLogger.ForQueue(queue, os.Getpid()).Info("Worker process started")
	infra.Logger = appLogger.With(slog.Int("pid", os.Getpid())).Logger

	return worker.RunQueue(context.Background(), def, infra)
}

func migrate(ctx context.Context, dbConfig *postgresql.Config, table string, logger *slog.Logger) error {
	client, err := postgresql.NewClient(dbConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer client.Close()

	if err := client.Migrate(ctx, migrations.FS, table); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// postgresConfig maps the database section onto the client configuration
func postgresConfig(cfg *config.DatabaseConfig) postgresql.Config {
	return postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnectTimeout:  cfg.ConnectTimeout,
	}
}

// rabbitConfig returns nil when RabbitMQ is disabled
func rabbitConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	if !cfg.Enabled {
		return nil
	}

	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
	}
}
