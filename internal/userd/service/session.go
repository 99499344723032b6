package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ducgiangtran/switchboard/internal/presence"
	"github.com/ducgiangtran/switchboard/internal/userd/domain"
	"github.com/ducgiangtran/switchboard/internal/userd/store"
	"github.com/ducgiangtran/switchboard/pkg/cryptox"
)

// presenceWriter is the slice of the presence store the session flow
// needs. presence.Store satisfies it; tests substitute a fake.
type presenceWriter interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	Publish(ctx context.Context, channel, userID string) error
}

// SessionService owns the login/logout flow: credential check, the online
// hash write, and the presence broadcast that feeds the relay chain.
type SessionService struct {
	Store    store.Store
	Presence presenceWriter
	Logger   *slog.Logger
}

// Login verifies credentials, marks the user online and broadcasts the
// transition. The hash write is part of the login contract and fails the
// call; the broadcast is fire-and-forget and only logs.
func (s *SessionService) Login(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := s.Presence.SetOnline(ctx, user.ID); err != nil {
		return domain.User{}, err
	}
	if err := s.Presence.Publish(ctx, presence.ChannelOnline, user.ID); err != nil {
		s.logger().Warn("presence online broadcast failed", "user_id", user.ID, "err", err)
	}

	return user, nil
}

// Logout marks the user offline and broadcasts the transition. It does not
// require the user to exist in the store: an offline write for an unknown
// id is a no-op on the hash.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if err := s.Presence.SetOffline(ctx, userID); err != nil {
		return err
	}
	if err := s.Presence.Publish(ctx, presence.ChannelOffline, userID); err != nil {
		s.logger().Warn("presence offline broadcast failed", "user_id", userID, "err", err)
	}
	return nil
}

func (s *SessionService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
