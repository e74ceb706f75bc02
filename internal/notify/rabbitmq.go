// Package notify announces generated datasets to other systems.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"salesdata/internal/sales"
)

var (
	dialAttempts = 10
	dialBackoff  = 2 * time.Second
)

// Channel is the part of *amqp.Channel the notifier uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQNotifier publishes dataset events to a durable queue.
type RabbitMQNotifier struct {
	conn    *amqp.Connection
	channel Channel
	queue   string
	logger  *zap.Logger
}

// DialRabbitMQ connects to url, retrying while the broker starts, and
// declares queue.
func DialRabbitMQ(ctx context.Context, url, queue string, logger *zap.Logger) (*RabbitMQNotifier, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		if i == dialAttempts-1 {
			break
		}
		logger.Warn("failed to connect to RabbitMQ, retrying",
			zap.Int("attempt", i+1), zap.Duration("backoff", dialBackoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}

	n := NewRabbitMQNotifier(ch, queue, logger)
	n.conn = conn
	return n, nil
}

// NewRabbitMQNotifier wraps an already open channel.
func NewRabbitMQNotifier(ch Channel, queue string, logger *zap.Logger) *RabbitMQNotifier {
	return &RabbitMQNotifier{channel: ch, queue: queue, logger: logger}
}

// Notify publishes event as a persistent JSON message keyed by the run id.
func (n *RabbitMQNotifier) Notify(ctx context.Context, event sales.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = n.channel.PublishWithContext(ctx,
		"",      // exchange
		n.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			MessageId:    event.RunID,
			Type:         event.Type,
			ContentType:  "application/json",
			Timestamp:    event.Timestamp,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	n.logger.Info("event published", zap.String("queue", n.queue), zap.String("run_id", event.RunID))
	return nil
}

// Close releases the channel and, when dialed, the connection.
func (n *RabbitMQNotifier) Close() error {
	err := n.channel.Close()
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
