package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
	"github.com/cuongbtq/pgjobqueue/internal/worker/storage"
	"github.com/cuongbtq/pgjobqueue/shared/postgresql"
	"github.com/cuongbtq/pgjobqueue/shared/rabbitmq"
	"github.com/google/uuid"
)

// Infra describes the connections a worker opens for itself. Connections
// are never shared between workers.
type Infra struct {
	Database      postgresql.Config
	RabbitMQ      *rabbitmq.Config
	NotifyChannel string
	Logger        *slog.Logger
}

// RunQueue opens the worker's own store connection, builds the trigger the
// definition asks for and runs the worker loop until ctx is done.
func RunQueue(ctx context.Context, def Definition, infra Infra) error {
	workerID := uuid.NewString()
	logger := infra.Logger.With(
		slog.String("queue", def.Queue),
		slog.String("worker_id", workerID),
	)

	dbConfig := infra.Database
	dbConfig.MaxOpenConns = 1
	dbConfig.MaxIdleConns = 1
	if dbConfig.ApplicationName == "" {
		dbConfig.ApplicationName = "pgjobqueue-" + def.Queue
	}

	client, err := postgresql.NewClient(&dbConfig, logger)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer client.Close()

	store := storage.NewStorage(client, logger)

	trigger, err := newTrigger(def, store, client, infra, workerID, logger)
	if err != nil {
		return err
	}

	w := NewWorker(&Config{
		Definition: def,
		Store:      store,
		Trigger:    trigger,
		Logger:     infra.Logger,
		WorkerID:   workerID,
	})
	return w.Run(ctx)
}

func newTrigger(def Definition, store Store, client *postgresql.Client, infra Infra, workerID string, logger *slog.Logger) (Trigger, error) {
	switch def.Trigger {
	case domain.TriggerPoll:
		return NewPollingTrigger(def.Queue, def.PollInterval, def.Drain, store, logger), nil

	case domain.TriggerNotify:
		listener, err := client.NewListener(infra.NotifyChannel)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		return NewNotificationTrigger(def.Queue, store, NewPostgresSource(listener), logger), nil

	case domain.TriggerAMQP:
		if infra.RabbitMQ == nil {
			return nil, fmt.Errorf("queue %s uses the amqp trigger but rabbitmq is not configured", def.Queue)
		}
		amqpConfig := *infra.RabbitMQ
		amqpConfig.QueueName = QueueBindingName(infra.RabbitMQ.QueueName, def.Queue)
		amqpConfig.RoutingKey = def.Queue

		rabbit, err := rabbitmq.NewClient(&amqpConfig, logger)
		if err != nil {
			return nil, err
		}
		// a failed publish leaves a committed job no message will announce
		trigger := NewNotificationTrigger(def.Queue, store, NewAMQPSource(rabbit, workerID, logger), logger)
		return trigger.WithSweepInterval(def.PollInterval), nil
	}

	return nil, fmt.Errorf("queue %s: unknown trigger %q", def.Queue, def.Trigger)
}

// QueueBindingName is the RabbitMQ queue consumed by the worker of a job queue
func QueueBindingName(prefix, queue string) string {
	if prefix == "" {
		return queue
	}
	return prefix + "." + queue
}
