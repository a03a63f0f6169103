package output

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	rabbitDialAttempts   = 5
	rabbitPublishTimeout = 5 * time.Second
)

// publisher is the part of *amqp.Channel the output needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQOutput publishes each record to a topic exchange with the topic as
// routing key.
type RabbitMQOutput struct {
	conn     *amqp.Connection
	ch       publisher
	exchange string
	logger   *slog.Logger
}

func NewRabbitMQOutput(url, exchange string, logger *slog.Logger) (*RabbitMQOutput, error) {
	var conn *amqp.Connection
	var err error
	for i := 1; i <= rabbitDialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("rabbitmq connect attempt failed", "attempt", i, "error", err)
		if i < rabbitDialAttempts {
			time.Sleep(time.Second << uint(i-1))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after retries: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("connected to rabbitmq", "exchange", exchange)
	return &RabbitMQOutput{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

func (r *RabbitMQOutput) WriteMessage(topic string, msg []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), rabbitPublishTimeout)
	defer cancel()
	err := r.ch.PublishWithContext(ctx, r.exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         msg,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (r *RabbitMQOutput) Close() error {
	var lastErr error
	if r.ch != nil {
		lastErr = r.ch.Close()
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			lastErr = err
		}
	}
	r.ch, r.conn = nil, nil
	return lastErr
}
