package presence

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCmds records redis commands without a server.
type fakeCmds struct {
	hset    [][]any
	hdel    [][]string
	publish []struct {
		channel string
		payload string
	}
	online map[string]bool
	err    error
}

func (f *fakeCmds) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.hset = append(f.hset, append([]any{key}, values...))
	return redis.NewIntResult(1, f.err)
}

func (f *fakeCmds) HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd {
	f.hdel = append(f.hdel, append([]string{key}, fields...))
	return redis.NewIntResult(1, f.err)
}

func (f *fakeCmds) HExists(ctx context.Context, key, field string) *redis.BoolCmd {
	return redis.NewBoolResult(f.online[field], f.err)
}

func (f *fakeCmds) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.publish = append(f.publish, struct {
		channel string
		payload string
	}{channel, string(message.([]byte))})
	return redis.NewIntResult(1, f.err)
}

func newTestStore(cmds *fakeCmds) *Store {
	return &Store{
		cmds:   cmds,
		logger: testLogger(),
		now:    func() time.Time { return time.UnixMilli(1700000000000) },
	}
}

func TestSetOnlineWritesTimestampedField(t *testing.T) {
	cmds := &fakeCmds{}
	s := newTestStore(cmds)

	require.NoError(t, s.SetOnline(context.Background(), "u1"))

	require.Len(t, cmds.hset, 1)
	assert.Equal(t, []any{"users:online", "u1", strconv.FormatInt(1700000000000, 10)}, cmds.hset[0])
}

func TestSetOfflineDeletesField(t *testing.T) {
	cmds := &fakeCmds{}
	s := newTestStore(cmds)

	require.NoError(t, s.SetOffline(context.Background(), "u1"))

	require.Len(t, cmds.hdel, 1)
	assert.Equal(t, []string{"users:online", "u1"}, cmds.hdel[0])
}

func TestIsOnline(t *testing.T) {
	cmds := &fakeCmds{online: map[string]bool{"u1": true}}
	s := newTestStore(cmds)

	on, err := s.IsOnline(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, on)

	on, err = s.IsOnline(context.Background(), "u2")
	require.NoError(t, err)
	assert.False(t, on)
}

func TestPublishBroadcastsUserID(t *testing.T) {
	cmds := &fakeCmds{}
	s := newTestStore(cmds)

	require.NoError(t, s.Publish(context.Background(), ChannelOnline, "u1"))

	require.Len(t, cmds.publish, 1)
	assert.Equal(t, ChannelOnline, cmds.publish[0].channel)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(cmds.publish[0].payload), &payload))
	assert.Equal(t, map[string]string{"userId": "u1"}, payload)
}

func TestParseChannelPayload(t *testing.T) {
	userID, err := ParseChannelPayload([]byte(`{"userId":"u1"}`))
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	_, err = ParseChannelPayload([]byte(`{`))
	require.Error(t, err)

	_, err = ParseChannelPayload([]byte(`{"other":"x"}`))
	require.Error(t, err)
}

func TestKindForChannel(t *testing.T) {
	kind, ok := KindForChannel(ChannelOnline)
	require.True(t, ok)
	assert.Equal(t, KindOnline, kind)

	kind, ok = KindForChannel(ChannelOffline)
	require.True(t, ok)
	assert.Equal(t, KindOffline, kind)

	_, ok = KindForChannel("presence-unknown")
	assert.False(t, ok)
}
