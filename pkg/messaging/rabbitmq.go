package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/poubelles/poubelles-backend/pkg/config"
	"github.com/poubelles/poubelles-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeadLetterExchange receives messages rejected by any bin consumer
const DeadLetterExchange = "dlx.bins"

// RabbitMQ manages the connection to RabbitMQ
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.RabbitMQConfig
	logger  *logger.Logger
	mu      sync.RWMutex
	closed  bool
}

// New dials RabbitMQ, retrying up to MaxRetries times before giving up
func New(ctx context.Context, cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	rmq := &RabbitMQ{
		config: cfg,
		logger: log.WithComponent("rabbitmq"),
	}

	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = rmq.connect(); err == nil {
			return rmq, nil
		}

		rmq.logger.Warn().Err(err).Int("attempt", i+1).Msg("RabbitMQ connection attempt failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.ReconnectDelay):
		}
	}

	return nil, err
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(r.config.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.channel = ch
	r.mu.Unlock()

	r.logger.Info().Msg("connected to RabbitMQ")
	return nil
}

// Channel returns the current channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close closes the RabbitMQ connection. Calling it twice is harmless.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health returns the health status of RabbitMQ
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := map[string]string{
		"status": "up",
	}

	if r.conn == nil || r.conn.IsClosed() {
		status["status"] = "down"
		status["error"] = "connection closed"
	}

	return status
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(
		name,    // name
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
}

// DeclareQueue declares a durable queue that dead-letters into DeadLetterExchange
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	return r.Channel().QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange": DeadLetterExchange,
		},
	)
}

// DeclareDeadLetterQueue declares the dead letter exchange and a catch-all queue for serviceName
func (r *RabbitMQ) DeclareDeadLetterQueue(serviceName string) error {
	if err := r.DeclareExchange(DeadLetterExchange); err != nil {
		return fmt.Errorf("failed to declare DLX exchange: %w", err)
	}

	queueName := "dlq." + serviceName
	if _, err := r.Channel().QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := r.BindQueue(queueName, DeadLetterExchange, "#"); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	return nil
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queueName, exchange, routingKey string) error {
	return r.Channel().QueueBind(
		queueName,
		routingKey,
		exchange,
		false,
		nil,
	)
}
