package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducgiangtran/switchboard/internal/presence"
	"github.com/ducgiangtran/switchboard/internal/queue"
)

// fakeSource replays canned broadcast messages through the handler, the
// way a single ordered subscriber connection would.
type fakeSource struct {
	messages []struct {
		channel string
		payload string
	}
}

func (f *fakeSource) add(channel, payload string) {
	f.messages = append(f.messages, struct {
		channel string
		payload string
	}{channel, payload})
}

func (f *fakeSource) Subscribe(ctx context.Context, handler func(channel string, payload []byte), channels ...string) error {
	for _, m := range f.messages {
		handler(m.channel, []byte(m.payload))
	}
	return ctx.Err()
}

// fakePublisher fails the first failures calls, then records bodies.
type fakePublisher struct {
	failures  int
	calls     int
	published []presence.Event
	keys      []string
}

func (f *fakePublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("broker unavailable")
	}
	var ev presence.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return err
	}
	f.published = append(f.published, ev)
	f.keys = append(f.keys, routingKey)
	return nil
}

func newTestBridge(src Source, pub queue.Publisher) *Bridge {
	b := NewBridge(src, pub, slog.New(slog.DiscardHandler))
	b.sleep = func(ctx context.Context, d time.Duration) {}
	return b
}

func TestBridgeForwardsEvents(t *testing.T) {
	src := &fakeSource{}
	src.add(presence.ChannelOnline, `{"userId":"u1"}`)
	src.add(presence.ChannelOffline, `{"userId":"u1"}`)

	pub := &fakePublisher{}
	b := newTestBridge(src, pub)

	require.NoError(t, b.Run(context.Background()))

	require.Len(t, pub.published, 2)
	assert.Equal(t, []string{queue.RoutingKeyCreateNotification, queue.RoutingKeyCreateNotification}, pub.keys)

	// Per-user order is the receipt order: online before offline.
	assert.Equal(t, "u1", pub.published[0].UserID)
	assert.Equal(t, presence.KindOnline, pub.published[0].Kind)
	assert.Equal(t, presence.KindOffline, pub.published[1].Kind)

	assert.NotEmpty(t, pub.published[0].ID)
	assert.NotEqual(t, pub.published[0].ID, pub.published[1].ID)
	assert.False(t, pub.published[0].At.IsZero())
}

func TestBridgeDropsMalformedAndContinues(t *testing.T) {
	src := &fakeSource{}
	src.add(presence.ChannelOnline, `{not json`)
	src.add(presence.ChannelOnline, `{"other":"field"}`)
	src.add("presence-unknown", `{"userId":"u9"}`)
	src.add(presence.ChannelOnline, `{"userId":"u2"}`)

	pub := &fakePublisher{}
	b := newTestBridge(src, pub)

	require.NoError(t, b.Run(context.Background()))

	// Only the last, well-formed message on a known channel survives.
	require.Len(t, pub.published, 1)
	assert.Equal(t, "u2", pub.published[0].UserID)
}

func TestBridgeRetriesEnqueue(t *testing.T) {
	src := &fakeSource{}
	src.add(presence.ChannelOnline, `{"userId":"u1"}`)

	pub := &fakePublisher{failures: 2}
	b := newTestBridge(src, pub)

	var slept []time.Duration
	b.sleep = func(ctx context.Context, d time.Duration) { slept = append(slept, d) }

	require.NoError(t, b.Run(context.Background()))

	require.Len(t, pub.published, 1)
	assert.Equal(t, 3, pub.calls)
	// Backoff doubles between attempts.
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, slept)
}

func TestBridgeDropsAfterBoundedRetries(t *testing.T) {
	src := &fakeSource{}
	src.add(presence.ChannelOnline, `{"userId":"u1"}`)
	src.add(presence.ChannelOnline, `{"userId":"u2"}`)

	// First event exhausts all attempts; second succeeds immediately.
	pub := &fakePublisher{failures: 5}
	b := newTestBridge(src, pub)

	require.NoError(t, b.Run(context.Background()))

	require.Len(t, pub.published, 1, "dropped event must not stop the loop")
	assert.Equal(t, "u2", pub.published[0].UserID)
	assert.Equal(t, 6, pub.calls)
}
