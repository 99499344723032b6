// Package notify drains the durable queue and turns presence events into
// user notifications. Every delivery is handled under manual ack: the
// message stays on the broker until the side effect succeeded, comes back
// for a bounded number of redeliveries on failure, and is dead-lettered
// once the budget is spent.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ducgiangtran/switchboard/internal/presence"
	"github.com/ducgiangtran/switchboard/internal/queue"
)

// Notifier performs the actual side effect for one presence event.
type Notifier interface {
	Notify(ctx context.Context, event presence.Event) error
}

const (
	// defaultMaxDeliveries counts the first delivery plus redeliveries.
	defaultMaxDeliveries = 3

	dedupeTTL     = 10 * time.Minute
	dedupeMaxSize = 10_000
)

// Consumer runs the manual-ack receive loop. Failures never crash the
// loop; the per-message outcome is always an explicit ack or nack.
type Consumer struct {
	// MaxDeliveries bounds how many times one message may be attempted
	// before it is dead-lettered.
	MaxDeliveries int

	notifier Notifier
	dedupe   *Dedupe
	logger   *slog.Logger

	// attempts tracks deliveries per event for messages that keep failing.
	// Only the receive loop goroutine touches it.
	attempts map[string]int
}

// NewConsumer wires a consumer with the default retry and dedupe policy.
func NewConsumer(notifier Notifier, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		MaxDeliveries: defaultMaxDeliveries,
		notifier:      notifier,
		dedupe:        NewDedupe(dedupeTTL, dedupeMaxSize),
		logger:        logger.With("component", "notify_consumer"),
		attempts:      make(map[string]int),
	}
}

// Run drains deliveries until ctx is canceled or the channel closes.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan queue.Delivery) error {
	defer c.dedupe.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

// handle decides the fate of one delivery: ack, requeue, or dead-letter.
func (c *Consumer) handle(ctx context.Context, d queue.Delivery) {
	if d.RoutingKey() != queue.RoutingKeyCreateNotification {
		c.logger.Warn("delivery with unknown routing key dead-lettered", "routing_key", d.RoutingKey())
		c.finish(d.Nack(false))
		return
	}

	event, err := decodeEvent(d.Body())
	if err != nil {
		// A malformed body can never succeed; requeueing it would loop.
		c.logger.Warn("malformed delivery dead-lettered", "err", err)
		c.finish(d.Nack(false))
		return
	}

	key := dedupeKey(event)
	if c.dedupe.CheckAndMark(key) {
		// Redelivery of an event whose side effect already ran, e.g.
		// after a crash between notify and ack. Acking it is the
		// idempotent outcome.
		c.logger.Info("duplicate event acknowledged",
			"event_id", event.ID, "user_id", event.UserID, "redelivered", d.Redelivered())
		c.finish(d.Ack())
		return
	}

	if err := c.notifier.Notify(ctx, event); err != nil {
		c.dedupe.Forget(key)
		c.fail(d, event, err)
		return
	}

	delete(c.attempts, key)
	c.finish(d.Ack())
}

// fail requeues a failed delivery until MaxDeliveries is reached, then
// dead-letters it so a poison message cannot starve the queue.
func (c *Consumer) fail(d queue.Delivery, event presence.Event, err error) {
	key := dedupeKey(event)
	c.attempts[key]++

	if c.attempts[key] < c.MaxDeliveries {
		c.logger.Warn("notification failed, requeueing",
			"event_id", event.ID, "user_id", event.UserID,
			"delivery", c.attempts[key], "err", err)
		c.finish(d.Nack(true))
		return
	}

	delete(c.attempts, key)
	c.logger.Error("notification dead-lettered after retries",
		"event_id", event.ID, "user_id", event.UserID,
		"deliveries", c.MaxDeliveries, "err", err)
	c.finish(d.Nack(false))
}

// finish logs a failed ack/nack. There is nothing else to do with it: the
// broker will redeliver unacked messages once the channel recovers.
func (c *Consumer) finish(err error) {
	if err != nil {
		c.logger.Error("acknowledgment failed", "err", err)
	}
}

func decodeEvent(body []byte) (presence.Event, error) {
	var event presence.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return presence.Event{}, fmt.Errorf("notify: decode event: %w", err)
	}
	if event.UserID == "" {
		return presence.Event{}, fmt.Errorf("notify: event missing userId")
	}
	return event, nil
}

// dedupeKey identifies an event across redeliveries. The bridge stamps
// every event with a unique ID; the fallback covers producers that do not.
func dedupeKey(event presence.Event) string {
	if event.ID != "" {
		return event.ID
	}
	return fmt.Sprintf("%s:%s:%d", event.UserID, event.Kind, event.At.UnixMilli())
}
