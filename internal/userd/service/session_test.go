package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducgiangtran/switchboard/internal/presence"
	"github.com/ducgiangtran/switchboard/internal/userd/domain"
	"github.com/ducgiangtran/switchboard/internal/userd/store"
	"github.com/ducgiangtran/switchboard/pkg/cryptox"
)

// memStore is an in-memory store.Store for service tests.
type memStore struct {
	users map[string]domain.User // keyed by id
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]domain.User)}
}

func (m *memStore) Users() store.Users         { return (*memUsers)(m) }
func (m *memStore) ApplyMigrations() error     { return nil }
func (m *memStore) Close() error               { return nil }
func (m *memStore) Ping(context.Context) error { return nil }

type memUsers memStore

func (m *memUsers) GetUserByID(_ context.Context, id string) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (m *memUsers) CreateUser(_ context.Context, u domain.User) error {
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return store.ErrAlreadyExists
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) UpdateDisplayName(_ context.Context, userID, displayName string) error {
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.DisplayName = displayName
	m.users[userID] = u
	return nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = newHash
	m.users[userID] = u
	return nil
}

func (m *memUsers) DeleteUser(_ context.Context, userID string) error {
	if _, ok := m.users[userID]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, userID)
	return nil
}

// fakePresence records presence writes and broadcasts.
type fakePresence struct {
	online    []string
	offline   []string
	published []string // "channel:userID"
	setErr    error
	pubErr    error
}

func (f *fakePresence) SetOnline(_ context.Context, userID string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.online = append(f.online, userID)
	return nil
}

func (f *fakePresence) SetOffline(_ context.Context, userID string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.offline = append(f.offline, userID)
	return nil
}

func (f *fakePresence) Publish(_ context.Context, channel, userID string) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published = append(f.published, channel+":"+userID)
	return nil
}

func seedUser(t *testing.T, st *memStore, username, password string) domain.User {
	t.Helper()
	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	u := domain.User{ID: "01TESTUSER" + username, Username: username, DisplayName: username, PasswordHash: hash}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func newSessionService(st store.Store, p presenceWriter) *SessionService {
	return &SessionService{Store: st, Presence: p, Logger: slog.New(slog.DiscardHandler)}
}

func TestLoginMarksOnlineAndBroadcasts(t *testing.T) {
	st := newMemStore()
	seeded := seedUser(t, st, "alice", "hunter2hunter2")
	p := &fakePresence{}
	svc := newSessionService(st, p)

	user, err := svc.Login(context.Background(), "alice", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, user.ID)

	assert.Equal(t, []string{seeded.ID}, p.online)
	assert.Equal(t, []string{presence.ChannelOnline + ":" + seeded.ID}, p.published)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	st := newMemStore()
	seedUser(t, st, "alice", "hunter2hunter2")
	p := &fakePresence{}
	svc := newSessionService(st, p)

	// Unknown user and wrong password produce the same error.
	_, err := svc.Login(context.Background(), "mallory", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Empty(t, p.online, "failed login must not touch presence")
	assert.Empty(t, p.published)
}

func TestLoginSucceedsWhenBroadcastFails(t *testing.T) {
	st := newMemStore()
	seeded := seedUser(t, st, "alice", "hunter2hunter2")
	p := &fakePresence{pubErr: assert.AnError}
	svc := newSessionService(st, p)

	user, err := svc.Login(context.Background(), "alice", "hunter2hunter2")
	require.NoError(t, err, "broadcast is fire-and-forget")
	assert.Equal(t, seeded.ID, user.ID)
	assert.Equal(t, []string{seeded.ID}, p.online)
}

func TestLoginFailsWhenOnlineWriteFails(t *testing.T) {
	st := newMemStore()
	seedUser(t, st, "alice", "hunter2hunter2")
	p := &fakePresence{setErr: assert.AnError}
	svc := newSessionService(st, p)

	_, err := svc.Login(context.Background(), "alice", "hunter2hunter2")
	assert.Error(t, err)
	assert.Empty(t, p.published)
}

func TestLogoutMarksOfflineAndBroadcasts(t *testing.T) {
	p := &fakePresence{}
	svc := newSessionService(newMemStore(), p)

	require.NoError(t, svc.Logout(context.Background(), "u1"))
	assert.Equal(t, []string{"u1"}, p.offline)
	assert.Equal(t, []string{presence.ChannelOffline + ":u1"}, p.published)
}
