// Package queue wraps the durable broker used to hand presence events from
// the relay bridge to the notification consumer. Messages survive consumer
// restarts and stay redeliverable until explicitly acknowledged.
package queue

import "context"

// RoutingKeyCreateNotification dispatches presence events to the
// notification handler.
const RoutingKeyCreateNotification = "create_notification"

// DefaultQueueName is the one durable queue the mesh uses.
const DefaultQueueName = "notification_queue"

// Publisher enqueues durable messages. Implemented by AMQPPublisher in
// production and by in-memory fakes in tests.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Delivery is one received message under manual acknowledgment. The
// message stays on the broker until Ack; Nack with requeue asks for an
// immediate redelivery, Nack without requeue dead-letters it.
type Delivery interface {
	Body() []byte
	RoutingKey() string
	Redelivered() bool
	Ack() error
	Nack(requeue bool) error
}
