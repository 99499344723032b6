package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// onlineKey is the shared hash of online users: field = user id, value =
// the moment the user came online in unix milliseconds.
const onlineKey = "users:online"

// redisCmds is the slice of go-redis we actually use, split out so tests
// can substitute a fake.
type redisCmds interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HExists(ctx context.Context, key, field string) *redis.BoolCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Store is the shared presence facility: a redis hash of who is online
// plus fire-and-forget broadcast of transitions. Any service may write to
// it; subscribers only see events published while they are connected.
// Durability is the relay bridge's job, not this store's.
//
// All writes are single-key puts/deletes, never read-modify-write, so no
// locking is needed around them.
type Store struct {
	cmds   redisCmds
	sub    subscriber
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New wires a Store over a redis client.
func New(client *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cmds:   client,
		sub:    client,
		logger: logger.With("component", "presence_store"),
		now:    time.Now,
	}
}

// SetOnline records the user in the online hash with the current timestamp.
func (s *Store) SetOnline(ctx context.Context, userID string) error {
	ms := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.cmds.HSet(ctx, onlineKey, userID, ms).Err(); err != nil {
		return fmt.Errorf("presence: set online %q: %w", userID, err)
	}
	return nil
}

// SetOffline removes the user from the online hash.
func (s *Store) SetOffline(ctx context.Context, userID string) error {
	if err := s.cmds.HDel(ctx, onlineKey, userID).Err(); err != nil {
		return fmt.Errorf("presence: set offline %q: %w", userID, err)
	}
	return nil
}

// IsOnline reports whether the user currently has an online entry.
func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	ok, err := s.cmds.HExists(ctx, onlineKey, userID).Result()
	if err != nil {
		return false, fmt.Errorf("presence: check online %q: %w", userID, err)
	}
	return ok, nil
}

// channelPayload is the wire shape broadcast on the presence channels.
type channelPayload struct {
	UserID string `json:"userId"`
}

// Publish broadcasts a transition for userID on the given channel. This is
// fire-and-forget: subscribers not connected right now never see it.
func (s *Store) Publish(ctx context.Context, channel, userID string) error {
	payload, err := json.Marshal(channelPayload{UserID: userID})
	if err != nil {
		return fmt.Errorf("presence: encode payload: %w", err)
	}
	if err := s.cmds.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("presence: publish on %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens one ordered subscriber connection for the given channels
// and invokes handler once per received message, in receipt order. It
// blocks until ctx is canceled. Per-user ordering downstream depends on
// this single-connection, synchronous dispatch.
func (s *Store) Subscribe(ctx context.Context, handler func(channel string, payload []byte), channels ...string) error {
	pubsub := s.sub.Subscribe(ctx, channels...)
	defer pubsub.Close()

	// Force the subscription onto the wire before we report readiness via
	// the receive loop; events published before this point are lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("presence: subscribe %v: %w", channels, err)
	}
	s.logger.Info("subscribed to presence channels", "channels", channels)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("presence: subscriber connection closed")
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}

// ParseChannelPayload decodes the {"userId": ...} broadcast payload.
func ParseChannelPayload(payload []byte) (string, error) {
	var p channelPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("presence: decode payload: %w", err)
	}
	if p.UserID == "" {
		return "", fmt.Errorf("presence: payload missing userId")
	}
	return p.UserID, nil
}
