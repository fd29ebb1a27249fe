package rabbit

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"registrar/internal/observability"
)

const (
	retryCountHeader = "x-retry-count"
	deadReasonHeader = "x-dead-reason"
)

// Handler processes one delivery body. A nil return acknowledges the
// message; an error sends it through the retry and dead-letter path.
type Handler func(ctx context.Context, body []byte) error

// ConsumerConfig describes one queue's topology and failure policy.
type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	// Bindings are the routing keys bound from the exchange to Queue.
	Bindings []string
	// DeadLetter receives messages that exhausted MaxRetries or failed
	// permanently.
	DeadLetter string
	MaxRetries int
	// Permanent reports whether an error must skip the retry loop and
	// go straight to the dead-letter queue.
	Permanent func(error) bool
}

// Consumer runs a manual-ack consume loop with prefetch 1. Failed
// deliveries are republished to the same queue with a bumped retry
// header until MaxRetries, then parked on the dead-letter queue.
type Consumer struct {
	cfg     ConsumerConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewConsumer(cfg ConsumerConfig, metrics *observability.Metrics, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{cfg: cfg, metrics: metrics, logger: logger}
}

// publisher is the slice of amqp.Channel the retry path needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Run consumes until ctx is canceled or the broker closes the stream.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := c.declareTopology(ch); err != nil {
		return err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %q: %w", c.cfg.Queue, err)
	}

	c.logger.Info("consumer started", "queue", c.cfg.Queue, "bindings", c.cfg.Bindings)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "queue", c.cfg.Queue)
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consume %q: delivery stream closed", c.cfg.Queue)
			}
			c.handle(ctx, ch, delivery, handler)
		}
	}
}

func (c *Consumer) declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", c.cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", c.cfg.Queue, err)
	}
	for _, key := range c.cfg.Bindings {
		if err := ch.QueueBind(c.cfg.Queue, key, c.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %q to %q: %w", c.cfg.Queue, key, err)
		}
	}
	if c.cfg.DeadLetter != "" {
		if _, err := ch.QueueDeclare(c.cfg.DeadLetter, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %q: %w", c.cfg.DeadLetter, err)
		}
	}
	return nil
}

// handle runs the handler and settles the delivery. Acks happen only
// after the handler's own publishes succeeded, so a crash mid-handle
// leaves the message queued rather than lost.
func (c *Consumer) handle(ctx context.Context, pub publisher, delivery amqp.Delivery, handler Handler) {
	err := handler(ctx, delivery.Body)
	if err == nil {
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("ack failed", "queue", c.cfg.Queue, "error", ackErr)
		}
		return
	}

	if c.cfg.Permanent != nil && c.cfg.Permanent(err) {
		c.logger.Warn("permanent failure, dead-lettering", "queue", c.cfg.Queue, "error", err)
		c.deadLetter(ctx, pub, delivery, err)
		return
	}

	attempts := retryCount(delivery.Headers)
	if attempts >= c.cfg.MaxRetries {
		c.logger.Warn("retries exhausted, dead-lettering",
			"queue", c.cfg.Queue, "attempts", attempts, "error", err)
		c.deadLetter(ctx, pub, delivery, err)
		return
	}

	c.logger.Warn("handler failed, scheduling retry",
		"queue", c.cfg.Queue, "attempt", attempts+1, "error", err)

	headers := amqp.Table{}
	for k, v := range delivery.Headers {
		headers[k] = v
	}
	headers[retryCountHeader] = int32(attempts + 1)

	pubErr := pub.PublishWithContext(ctx, "", c.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  delivery.ContentType,
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         delivery.Body,
	})
	if pubErr != nil {
		c.logger.Error("retry republish failed, requeueing", "queue", c.cfg.Queue, "error", pubErr)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("nack failed", "queue", c.cfg.Queue, "error", nackErr)
		}
		return
	}

	c.metrics.AddRetried()
	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Error("ack failed", "queue", c.cfg.Queue, "error", ackErr)
	}
}

// deadLetter parks the message on the dead-letter queue with the
// failure reason, then acks the original.
func (c *Consumer) deadLetter(ctx context.Context, pub publisher, delivery amqp.Delivery, cause error) {
	if c.cfg.DeadLetter == "" {
		c.logger.Error("no dead-letter queue configured, dropping message",
			"queue", c.cfg.Queue, "error", cause)
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("ack failed", "queue", c.cfg.Queue, "error", ackErr)
		}
		return
	}

	headers := amqp.Table{}
	for k, v := range delivery.Headers {
		headers[k] = v
	}
	headers[deadReasonHeader] = cause.Error()

	pubErr := pub.PublishWithContext(ctx, "", c.cfg.DeadLetter, false, false, amqp.Publishing{
		ContentType:  delivery.ContentType,
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         delivery.Body,
	})
	if pubErr != nil {
		c.logger.Error("dead-letter publish failed, requeueing", "queue", c.cfg.Queue, "error", pubErr)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("nack failed", "queue", c.cfg.Queue, "error", nackErr)
		}
		return
	}

	c.metrics.AddDeadLettered()
	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Error("ack failed", "queue", c.cfg.Queue, "error", ackErr)
	}
}

func retryCount(headers amqp.Table) int {
	raw, ok := headers[retryCountHeader]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
