package queue

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declareQueue declares the durable queue with the exact properties the
// broker already holds (durable, not exclusive, no auto-delete); AMQP
// rejects a redeclaration with different properties.
func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue: declare %q: %w", name, err)
	}
	return nil
}

// AMQPPublisher publishes durable messages onto one named queue through
// the default exchange. The routing key travels in the message Type field
// so the consumer can dispatch on it.
type AMQPPublisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger *slog.Logger
}

// NewAMQPPublisher dials the broker and declares the queue.
func NewAMQPPublisher(url, queueName string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue: dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue: open channel: %w", err)
	}

	if err := declareQueue(ch, queueName); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &AMQPPublisher{
		conn:   conn,
		ch:     ch,
		queue:  queueName,
		logger: logger.With("component", "amqp_publisher", "queue", queueName),
	}, nil
}

// Publish enqueues one persistent message.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         routingKey,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("queue: publish %s: %w", routingKey, err)
	}
	return nil
}

// Close tears down the channel and connection.
func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// AMQPConsumer receives messages one at a time under manual ack.
type AMQPConsumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger *slog.Logger
}

// NewAMQPConsumer dials the broker, declares the queue and sets prefetch
// to one so a slow side effect never piles up unacked deliveries.
func NewAMQPConsumer(url, queueName string, logger *slog.Logger) (*AMQPConsumer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue: dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue: open channel: %w", err)
	}

	if err := declareQueue(ch, queueName); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue: set qos: %w", err)
	}

	return &AMQPConsumer{
		conn:   conn,
		ch:     ch,
		queue:  queueName,
		logger: logger.With("component", "amqp_consumer", "queue", queueName),
	}, nil
}

// Consume returns a channel of deliveries. The channel closes when the
// connection drops or Close is called.
func (c *AMQPConsumer) Consume(ctx context.Context) (<-chan Delivery, error) {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue: consume %q: %w", c.queue, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for d := range deliveries {
			select {
			case out <- &amqpDelivery{d: d}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close tears down the channel and connection.
func (c *AMQPConsumer) Close() error {
	if err := c.ch.Close(); err != nil {
		_ = c.conn.Close()
		return err
	}
	return c.conn.Close()
}

type amqpDelivery struct {
	d amqp.Delivery
}

func (a *amqpDelivery) Body() []byte            { return a.d.Body }
func (a *amqpDelivery) RoutingKey() string      { return a.d.Type }
func (a *amqpDelivery) Redelivered() bool       { return a.d.Redelivered }
func (a *amqpDelivery) Ack() error              { return a.d.Ack(false) }
func (a *amqpDelivery) Nack(requeue bool) error { return a.d.Nack(false, requeue) }
