package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const transactionsChangedRoutingKey = "transactions.changed"

// TransactionsChanged is published whenever a user's transactions are
// created, updated, deleted or imported.
type TransactionsChanged struct {
	UserID    int64     `json:"userId"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type EventHandler func(ctx context.Context, ev TransactionsChanged) error

// EventPublisher delivers TransactionsChanged events. Close waits for
// in-flight work.
type EventPublisher interface {
	PublishTransactionsChanged(ctx context.Context, userID int64, reason string) error
	Close() error
}

// AMQPBus publishes and consumes events on a durable direct exchange.
type AMQPBus struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *slog.Logger
}

func NewAMQPBus(url, exchangeName, queueName string, logger *slog.Logger) (*AMQPBus, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	bus := &AMQPBus{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.With("component", "events"),
	}

	if err := bus.setup(); err != nil {
		bus.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return bus, nil
}

func (b *AMQPBus) setup() error {
	err := b.channel.ExchangeDeclare(
		b.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = b.channel.QueueDeclare(
		b.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := b.channel.QueueBind(b.queueName, transactionsChangedRoutingKey, b.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (b *AMQPBus) PublishTransactionsChanged(ctx context.Context, userID int64, reason string) error {
	body, err := json.Marshal(TransactionsChanged{UserID: userID, Reason: reason, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = b.channel.PublishWithContext(
		ctx,
		b.exchangeName,                // exchange
		transactionsChangedRoutingKey, // routing key
		false,                         // mandatory
		false,                         // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	b.logger.DebugContext(ctx, "Published transactions changed event", "user_id", userID, "reason", reason)
	return nil
}

// Consume delivers events to handler until ctx is done. Malformed messages
// are dropped; handler failures are requeued.
func (b *AMQPBus) Consume(ctx context.Context, handler EventHandler) error {
	msgs, err := b.channel.Consume(
		b.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	b.logger.InfoContext(ctx, "Started consuming events", "queue", b.queueName)

	for {
		select {
		case <-ctx.Done():
			b.logger.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			var ev TransactionsChanged
			if err := json.Unmarshal(delivery.Body, &ev); err != nil {
				b.logger.ErrorContext(ctx, "Failed to unmarshal event", "error", err)
				_ = delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, ev); err != nil {
				b.logger.ErrorContext(ctx, "Failed to handle event", "error", err, "user_id", ev.UserID)
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

func (b *AMQPBus) Close() error {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// inlinePublisher runs the handler in a goroutine of this process. It is used
// when no broker is configured.
type inlinePublisher struct {
	handler EventHandler
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func newInlinePublisher(handler EventHandler, logger *slog.Logger) *inlinePublisher {
	return &inlinePublisher{
		handler: handler,
		timeout: 10 * time.Second,
		logger:  logger.With("component", "events"),
	}
}

func (p *inlinePublisher) PublishTransactionsChanged(ctx context.Context, userID int64, reason string) error {
	ev := TransactionsChanged{UserID: userID, Reason: reason, Timestamp: time.Now()}

	// The request context ends with the response.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		if err := p.handler(ctx, ev); err != nil {
			p.logger.Error("Failed to handle event", "error", err, "user_id", userID, "reason", reason)
		}
	}()
	return nil
}

func (p *inlinePublisher) Close() error {
	p.wg.Wait()
	return nil
}
