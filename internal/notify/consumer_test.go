package notify

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

// fakeDelivery records which acknowledgment the consumer chose.
type fakeDelivery struct {
	body        []byte
	routingKey  string
	redelivered bool

	acked    bool
	nacked   bool
	requeued bool
}

func (f *fakeDelivery) Body() []byte       { return f.body }
func (f *fakeDelivery) RoutingKey() string { return f.routingKey }
func (f *fakeDelivery) Redelivered() bool  { return f.redelivered }
func (f *fakeDelivery) Ack() error         { f.acked = true; return nil }
func (f *fakeDelivery) Nack(requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

// fakeNotifier fails the first failures calls, then records events.
type fakeNotifier struct {
	failures int
	calls    int
	notified []presence.Event
}

func (f *fakeNotifier) Notify(ctx context.Context, event presence.Event) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("downstream unavailable")
	}
	f.notified = append(f.notified, event)
	return nil
}

func eventDelivery(t *testing.T, event presence.Event) *fakeDelivery {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return &fakeDelivery{body: body, routingKey: queue.RoutingKeyCreateNotification}
}

func testEvent(id string) presence.Event {
	return presence.Event{
		ID:     id,
		UserID: "u1",
		Kind:   presence.KindOnline,
		At:     time.Now().UTC().Truncate(time.Millisecond),
	}
}

func newTestConsumer(n Notifier) *Consumer {
	return NewConsumer(n, slog.New(slog.DiscardHandler))
}

func TestConsumerAcksOnSuccess(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestConsumer(n)
	defer c.dedupe.Close()

	d := eventDelivery(t, testEvent("ev1"))
	c.handle(context.Background(), d)

	assert.True(t, d.acked)
	assert.False(t, d.nacked)
	require.Len(t, n.notified, 1)
	assert.Equal(t, "u1", n.notified[0].UserID)
	assert.Equal(t, presence.KindOnline, n.notified[0].Kind)
}

func TestConsumerDuplicateEventIsIdempotent(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestConsumer(n)
	defer c.dedupe.Close()

	event := testEvent("ev1")

	first := eventDelivery(t, event)
	c.handle(context.Background(), first)

	// Same event redelivered, e.g. after a crash between notify and ack.
	second := eventDelivery(t, event)
	second.redelivered = true
	c.handle(context.Background(), second)

	assert.Equal(t, 1, n.calls, "side effect must run once")
	assert.True(t, first.acked)
	assert.True(t, second.acked, "duplicate is acked, not dead-lettered")
}

func TestConsumerRequeuesThenSucceeds(t *testing.T) {
	n := &fakeNotifier{failures: 2}
	c := newTestConsumer(n)
	defer c.dedupe.Close()

	event := testEvent("ev1")

	// First two deliveries fail and come back; the third succeeds inside
	// the delivery budget.
	for i := 0; i < 2; i++ {
		d := eventDelivery(t, event)
		d.redelivered = i > 0
		c.handle(context.Background(), d)
		assert.True(t, d.nacked)
		assert.True(t, d.requeued, "failure under budget requeues")
	}

	final := eventDelivery(t, event)
	final.redelivered = true
	c.handle(context.Background(), final)

	assert.True(t, final.acked)
	assert.False(t, final.nacked)
	require.Len(t, n.notified, 1)
}

func TestConsumerDeadLettersAfterBudget(t *testing.T) {
	n := &fakeNotifier{failures: 10}
	c := newTestConsumer(n)
	defer c.dedupe.Close()

	event := testEvent("ev1")

	var last *fakeDelivery
	for i := 0; i < c.MaxDeliveries; i++ {
		last = eventDelivery(t, event)
		last.redelivered = i > 0
		c.handle(context.Background(), last)
	}

	assert.True(t, last.nacked)
	assert.False(t, last.requeued, "exhausted budget dead-letters")
	assert.Equal(t, c.MaxDeliveries, n.calls)

	// The counter resets; a later event for the same user starts fresh.
	n.failures = 0
	next := eventDelivery(t, testEvent("ev2"))
	c.handle(context.Background(), next)
	assert.True(t, next.acked)
}

func TestConsumerDeadLettersMalformedBody(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestConsumer(n)
	defer c.dedupe.Close()

	for _, body := range []string{`{not json`, `{"kind":"online"}`} {
		d := &fakeDelivery{body: []byte(body), routingKey: queue.RoutingKeyCreateNotification}
		c.handle(context.Background(), d)
		assert.True(t, d.nacked, "body %q", body)
		assert.False(t, d.requeued, "malformed body must not requeue")
	}
	assert.Zero(t, n.calls)
}

func TestConsumerDeadLettersUnknownRoutingKey(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestConsumer(n)
	defer c.dedupe.Close()

	d := eventDelivery(t, testEvent("ev1"))
	d.routingKey = "unexpected_key"
	c.handle(context.Background(), d)

	assert.True(t, d.nacked)
	assert.False(t, d.requeued)
	assert.Zero(t, n.calls)
}

func TestConsumerRunDrainsChannel(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestConsumer(n)

	deliveries := make(chan queue.Delivery, 2)
	d1 := eventDelivery(t, testEvent("ev1"))
	d2 := eventDelivery(t, testEvent("ev2"))
	deliveries <- d1
	deliveries <- d2
	close(deliveries)

	require.NoError(t, c.Run(context.Background(), deliveries))
	assert.True(t, d1.acked)
	assert.True(t, d2.acked)
	assert.Equal(t, 2, n.calls)
}

func TestConsumerRunStopsOnContextCancel(t *testing.T) {
	c := newTestConsumer(&fakeNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Run(ctx, make(chan queue.Delivery))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDedupeCheckAndMark(t *testing.T) {
	d := NewDedupe(time.Minute, 2)
	defer d.Close()

	assert.False(t, d.CheckAndMark("a"))
	assert.True(t, d.CheckAndMark("a"))

	d.Forget("a")
	assert.False(t, d.CheckAndMark("a"))

	// Size bound evicts the oldest key.
	assert.False(t, d.CheckAndMark("b"))
	assert.False(t, d.CheckAndMark("c"))
	assert.False(t, d.CheckAndMark("a"), "oldest key evicted at capacity")
}
