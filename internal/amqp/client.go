// Package amqp mirrors bus events over a RabbitMQ fanout exchange so several
// processes showing the same expenses refresh together.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"expensinator/internal/events"
	"expensinator/internal/log"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "expensinator.events"

const publishTimeout = 5 * time.Second

// Client publishes local events and forwards remote ones. Every process binds
// its own exclusive queue to the fanout exchange.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	source       string
	logger       *log.Logger
}

var _ events.Publisher = (*Client)(nil)

// NewClient dials the broker, retrying connection errors with backoff.
func NewClient(ctx context.Context, url, exchangeName string, logger *log.Logger) (*Client, error) {
	if exchangeName == "" {
		exchangeName = DefaultExchange
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentAMQP)

	var conn *amqp091.Connection
	err := retry.Do(
		func() error {
			var err error
			conn, err = amqp091.Dial(url)
			return err
		},
		retry.Context(ctx),
		retry.RetryIf(isConnectionError),
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.WarnContext(ctx, "AMQP dial failed, retrying", "attempt", n+1, log.FieldError, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		source:       uuid.NewString(),
		logger:       logger,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	logger.InfoContext(ctx, "Connected to AMQP broker",
		"exchange", exchangeName,
		"queue", client.queueName,
		"source", client.source)
	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Server-named, exclusive and auto-deleted: one queue per process.
	q, err := c.channel.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	c.queueName = q.Name

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		"",             // routing key, ignored by fanout
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// Source is the ID stamped on messages from this process.
func (c *Client) Source() string { return c.source }

// Publish implements events.Publisher. Failures are logged; the local bus has
// already been notified by the caller.
func (c *Client) Publish(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.publish(ctx, e); err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish event",
			log.NewFields().WithOperation(log.OpPublish).WithError(err).With(log.FieldEvent, string(e)).ToSlice()...)
	}
}

func (c *Client) publish(ctx context.Context, e events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.channel == nil {
		return errors.New("amqp channel not open")
	}

	body, err := NewEventMessage(e, c.source).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		"",             // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Transient,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	c.logger.DebugContext(ctx, "Published event", log.FieldEvent, string(e), "exchange", c.exchangeName)
	return nil
}

// Consume forwards events published by other processes to sink until ctx is
// done or the delivery channel closes.
func (c *Client) Consume(ctx context.Context, sink events.Publisher) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		true,        // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			if _, err := c.handle(delivery.Body, sink); err != nil {
				c.logger.ErrorContext(ctx, "Failed to unmarshal message",
					log.NewFields().WithOperation(log.OpConsume).WithError(err).ToSlice()...)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}
			delivery.Ack(false)
		}
	}
}

// handle decodes one message and forwards it unless this process sent it.
func (c *Client) handle(body []byte, sink events.Publisher) (forwarded bool, err error) {
	msg, err := EventMessageFromJSON(body)
	if err != nil {
		return false, err
	}
	if msg.Source == c.source {
		return false, nil
	}
	c.logger.Debug("Received remote event", log.FieldEvent, string(msg.Event), "source", msg.Source)
	sink.Publish(msg.Event)
	return true, nil
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var amqpErr *amqp091.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Recover
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"eof",
		"broken pipe",
		"use of closed network connection",
		"i/o timeout",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
