package rabbit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"registrar/internal/observability"
)

// Producer publishes events to a topic exchange over one long-lived
// connection. The channel runs in confirm mode and Publish blocks until
// the broker acknowledges the message, so callers only see success once
// the event is safely queued.
type Producer struct {
	url      string
	exchange string
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	confirms chan amqp.Confirmation
}

// NewProducer dials the broker and declares the exchange.
func NewProducer(url, exchange string, metrics *observability.Metrics, logger *slog.Logger) (*Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Producer{
		url:      url,
		exchange: exchange,
		metrics:  metrics,
		logger:   logger,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect establishes the connection and confirm-mode channel.
// Callers must hold the mutex.
func (p *Producer) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare exchange %q: %w", p.exchange, err)
	}

	p.conn = conn
	p.ch = ch
	p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return nil
}

// ensureChannel reconnects after a dropped connection. Callers must
// hold the mutex.
func (p *Producer) ensureChannel() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.logger.Warn("broker connection lost, reconnecting")
	return p.connect()
}

// Publish sends one persistent message and waits for the broker's
// confirmation. The mutex serializes publishes so each confirmation
// matches the message just sent.
func (p *Producer) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %q: %w", routingKey, err)
	}

	select {
	case confirm, ok := <-p.confirms:
		if !ok {
			return fmt.Errorf("publish %q: confirm channel closed", routingKey)
		}
		if !confirm.Ack {
			return fmt.Errorf("publish %q: broker nacked delivery %d", routingKey, confirm.DeliveryTag)
		}
	case <-ctx.Done():
		return fmt.Errorf("publish %q: %w", routingKey, ctx.Err())
	}

	p.metrics.AddPublished()
	p.logger.Debug("event published", "routing_key", routingKey, "bytes", len(body))
	return nil
}

// Close tears down the channel and connection.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	p.ch = nil
	return err
}
