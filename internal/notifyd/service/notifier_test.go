package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducgiangtran/switchboard/internal/notifyd/domain"
	"github.com/ducgiangtran/switchboard/internal/notifyd/store"
	"github.com/ducgiangtran/switchboard/internal/presence"
)

// memStore is an in-memory store.Store keyed by event id.
type memStore struct {
	byEvent map[string]domain.Notification
}

func newMemStore() *memStore {
	return &memStore{byEvent: make(map[string]domain.Notification)}
}

func (m *memStore) Notifications() store.Notifications { return (*memNotifications)(m) }
func (m *memStore) ApplyMigrations() error             { return nil }
func (m *memStore) Close() error                       { return nil }
func (m *memStore) Ping(context.Context) error         { return nil }

type memNotifications memStore

func (m *memNotifications) CreateNotification(_ context.Context, n domain.Notification) error {
	if _, ok := m.byEvent[n.EventID]; ok {
		return store.ErrAlreadyExists
	}
	m.byEvent[n.EventID] = n
	return nil
}

func (m *memNotifications) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range m.byEvent {
		if n.UserID == userID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func TestNotifyPersistsNotification(t *testing.T) {
	st := newMemStore()
	n := &StoreNotifier{Store: st, Logger: slog.New(slog.DiscardHandler)}

	event := presence.Event{ID: "ev1", UserID: "u1", Kind: presence.KindOnline, At: time.Now()}
	require.NoError(t, n.Notify(context.Background(), event))

	saved, ok := st.byEvent["ev1"]
	require.True(t, ok)
	assert.Equal(t, "u1", saved.UserID)
	assert.Equal(t, "online", saved.Kind)
	assert.Equal(t, "user u1 is now online", saved.Message)
	assert.NotEmpty(t, saved.ID)
}

func TestNotifyDuplicateEventSucceeds(t *testing.T) {
	st := newMemStore()
	n := &StoreNotifier{Store: st, Logger: slog.New(slog.DiscardHandler)}

	event := presence.Event{ID: "ev1", UserID: "u1", Kind: presence.KindOffline, At: time.Now()}
	require.NoError(t, n.Notify(context.Background(), event))
	require.NoError(t, n.Notify(context.Background(), event), "duplicate must not fail the ack")

	assert.Len(t, st.byEvent, 1)
	assert.Equal(t, "user u1 went offline", st.byEvent["ev1"].Message)
}
