package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/pgjobqueue/shared/rabbitmq"
	"github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Notification is one signal that a job may be ready.
// Resync means notifications may have been lost and the queue should be swept.
type Notification struct {
	JobID  string
	Resync bool
	ack    func(handled bool)
}

// Ack acknowledges the notification to its transport. handled=false asks
// the transport to deliver it again when it can.
func (n Notification) Ack(handled bool) {
	if n.ack != nil {
		n.ack(handled)
	}
}

// NotificationSource delivers job notifications for one queue
type NotificationSource interface {
	Notifications(ctx context.Context) (<-chan Notification, error)
	Close() error
}

// ListenConn is a LISTEN connection such as *postgresql.Listener. A nil
// notification means the connection was re-established.
type ListenConn interface {
	Notifications() <-chan *pq.Notification
	Close() error
}

// DeliveryConsumer is an AMQP consumer such as *rabbitmq.Client
type DeliveryConsumer interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Close() error
}

// PostgresSource adapts a LISTEN connection. The payload of every
// notification is the job id.
type PostgresSource struct {
	listener ListenConn
}

// NewPostgresSource wraps listener
func NewPostgresSource(listener ListenConn) *PostgresSource {
	return &PostgresSource{listener: listener}
}

// Notifications forwards LISTEN payloads until the listener is closed
func (s *PostgresSource) Notifications(ctx context.Context) (<-chan Notification, error) {
	out := make(chan Notification)
	in := s.listener.Notifications()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-in:
				if !ok {
					return
				}
				note := Notification{Resync: n == nil}
				if n != nil {
					note.JobID = n.Extra
				}
				select {
				case out <- note:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close unlistens and closes the LISTEN connection
func (s *PostgresSource) Close() error {
	return s.listener.Close()
}

// AMQPSource consumes job id messages from the queue's RabbitMQ binding
type AMQPSource struct {
	client      DeliveryConsumer
	consumerTag string
	logger      *slog.Logger
}

// NewAMQPSource wraps a consumer client whose queue is bound to one job queue
func NewAMQPSource(client DeliveryConsumer, consumerTag string, logger *slog.Logger) *AMQPSource {
	return &AMQPSource{
		client:      client,
		consumerTag: consumerTag,
		logger:      logger,
	}
}

// Notifications parses deliveries into notifications. Malformed messages
// are rejected without requeue and never reach the trigger.
func (s *AMQPSource) Notifications(ctx context.Context) (<-chan Notification, error) {
	deliveries, err := s.client.Consume(s.consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	out := make(chan Notification)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					s.logger.Warn("RabbitMQ delivery channel closed")
					return
				}

				var msg rabbitmq.JobMessage
				if err := json.Unmarshal(delivery.Body, &msg); err != nil || msg.JobID == "" {
					s.logger.Error("Failed to parse job message",
						slog.Any("error", err),
						slog.String("body", string(delivery.Body)),
					)
					if nackErr := delivery.Nack(false, false); nackErr != nil {
						s.logger.Error("Failed to NACK malformed message",
							slog.String("error", nackErr.Error()),
						)
					}
					continue
				}

				note := Notification{
					JobID: msg.JobID.String(),
					ack:   s.acker(delivery),
				}
				select {
				case out <- note:
				case <-ctx.Done():
					// requeue so another consumer or the next start picks it up
					_ = delivery.Nack(false, true)
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *AMQPSource) acker(delivery amqp.Delivery) func(bool) {
	return func(handled bool) {
		var err error
		if handled {
			err = delivery.Ack(false)
		} else {
			err = delivery.Nack(false, true)
		}
		if err != nil {
			s.logger.Error("Failed to acknowledge message",
				slog.Uint64("delivery_tag", delivery.DeliveryTag),
				slog.Bool("handled", handled),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Close closes the consumer connection
func (s *AMQPSource) Close() error {
	return s.client.Close()
}
