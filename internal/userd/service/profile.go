package service

import (
	"context"
	"strings"

	"github.com/ducgiangtran/switchboard/internal/userd/domain"
	"github.com/ducgiangtran/switchboard/internal/userd/store"
	"github.com/ducgiangtran/switchboard/pkg/cryptox"
	"github.com/ducgiangtran/switchboard/pkg/idx"
)

type ProfileService struct {
	Store store.Store
}

// GetProfile fetches a user by id.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// UpdateProfile sets the display name and returns the updated user.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID, displayName string) (domain.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return domain.User{}, ErrEmptyDisplayName
	}

	if err := s.Store.Users().UpdateDisplayName(ctx, userID, displayName); err != nil {
		return domain.User{}, err
	}
	return s.Store.Users().GetUserByID(ctx, userID)
}

// Register creates a new user with an argon2id password hash and a fresh
// ULID. The store rejects duplicate usernames with ErrAlreadyExists.
func (s *ProfileService) Register(ctx context.Context, username, password, displayName string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, ErrInvalidRegistration
	}
	if displayName == "" {
		displayName = username
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return s.Store.Users().GetUserByID(ctx, user.ID)
}
