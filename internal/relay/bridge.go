// Package relay bridges the volatile presence broadcasts into the durable
// notification queue. The pub/sub side is fire-and-forget; everything after
// the bridge's enqueue survives restarts and waits for an explicit ack.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ducgiangtran/switchboard/internal/presence"
	"github.com/ducgiangtran/switchboard/internal/queue"
	"github.com/ducgiangtran/switchboard/pkg/idx"
)

// Source is the broadcast side the bridge listens on. presence.Store
// satisfies it; tests drive the bridge with a plain fake.
type Source interface {
	Subscribe(ctx context.Context, handler func(channel string, payload []byte), channels ...string) error
}

// Bridge subscribes to the presence channels and forwards each transition
// into the durable queue. Events are enqueued synchronously in receipt
// order on the single subscriber connection, which is what preserves
// per-user ordering end to end.
//
// The bridge can only be as reliable as the pub/sub layer beneath it:
// events published while the bridge is disconnected are lost. That is a
// known property of the system, not something the bridge papers over.
type Bridge struct {
	// MaxAttempts bounds enqueue retries before an event is dropped.
	MaxAttempts int
	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration

	source Source
	pub    queue.Publisher
	logger *slog.Logger

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewBridge wires a bridge with the default retry policy (5 attempts,
// 200ms initial backoff).
func NewBridge(source Source, pub queue.Publisher, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		MaxAttempts: 5,
		BaseBackoff: 200 * time.Millisecond,
		source:      source,
		pub:         pub,
		logger:      logger.With("component", "relay_bridge"),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Run subscribes to both presence channels and blocks until ctx is
// canceled or the subscriber connection fails.
func (b *Bridge) Run(ctx context.Context) error {
	return b.source.Subscribe(ctx, func(channel string, payload []byte) {
		b.handle(ctx, channel, payload)
	}, presence.ChannelOnline, presence.ChannelOffline)
}

// handle processes one broadcast message. A malformed message is dropped
// and logged; it must never take down delivery for the messages behind it.
func (b *Bridge) handle(ctx context.Context, channel string, payload []byte) {
	kind, ok := presence.KindForChannel(channel)
	if !ok {
		b.logger.Warn("message on unexpected channel dropped", "channel", channel)
		return
	}

	userID, err := presence.ParseChannelPayload(payload)
	if err != nil {
		b.logger.Warn("malformed presence message dropped", "channel", channel, "err", err)
		return
	}

	event := presence.Event{
		ID:     idx.New().String(),
		UserID: userID,
		Kind:   kind,
		At:     b.now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("presence event encode failed", "user_id", userID, "err", err)
		return
	}

	if err := b.enqueue(ctx, body); err != nil {
		b.logger.Error("presence event dropped after retries",
			"user_id", userID, "kind", kind, "event_id", event.ID, "err", err)
	}
}

// enqueue pushes the event onto the durable queue, retrying with
// exponential backoff up to MaxAttempts.
func (b *Bridge) enqueue(ctx context.Context, body []byte) error {
	backoff := b.BaseBackoff

	var err error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		err = b.pub.Publish(ctx, queue.RoutingKeyCreateNotification, body)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b.logger.Warn("enqueue failed, retrying", "attempt", attempt, "err", err)
		if attempt < b.MaxAttempts {
			b.sleep(ctx, backoff)
			backoff *= 2
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
