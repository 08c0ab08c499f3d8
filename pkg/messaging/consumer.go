package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/poubelles/poubelles-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MaxRetries is the number of dead-letter round trips before a message is dropped to the DLQ
const MaxRetries = 3

// ErrPermanent marks a handler failure that retrying cannot fix
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so the consumer rejects the message instead of requeueing it
func Permanent(err error) error {
	return fmt.Errorf("%w: %v", ErrPermanent, err)
}

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Disposition is what the consumer does with a delivery after handling it
type Disposition int

const (
	Ack Disposition = iota
	Requeue
	Reject
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "reject"
	}
}

// Consumer handles consuming events from RabbitMQ
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
}

// NewConsumer creates a new consumer for the given queue
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
	}, nil
}

// Subscribe subscribes to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Run consumes messages until ctx is cancelled or the broker closes the channel
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel for %s closed", c.queueName)
			}
			c.settle(msg, c.dispatch(ctx, msg.Body, retryCount(msg)))
		}
	}
}

func (c *Consumer) settle(msg amqp.Delivery, d Disposition) {
	var err error
	switch d {
	case Ack:
		err = msg.Ack(false)
	case Requeue:
		err = msg.Nack(false, true)
	default:
		err = msg.Reject(false)
	}
	if err != nil {
		c.logger.Error().Err(err).Str("disposition", d.String()).Msg("failed to settle delivery")
	}
}

func (c *Consumer) dispatch(ctx context.Context, body []byte, retries int) Disposition {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		return Reject
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		return Ack
	}

	c.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("processing event")

	if err := handler(ctx, &event); err != nil {
		c.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("failed to process event")

		if errors.Is(err, ErrPermanent) {
			return Reject
		}

		if retries >= MaxRetries {
			c.logger.Warn().
				Str("event_id", event.ID).
				Int("retry_count", retries).
				Msg("max retries exceeded, sending to DLQ")
			return Reject
		}

		return Requeue
	}

	return Ack
}

func retryCount(msg amqp.Delivery) int {
	if msg.Headers == nil {
		return 0
	}

	if deaths, ok := msg.Headers["x-death"].([]interface{}); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}

	return 0
}
