package store

import (
	"context"
	"errors"

	"github.com/ducgiangtran/switchboard/internal/notifyd/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface for the notification service.
type Store interface {
	Notifications() Notifications

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Notifications interface {
	// CreateNotification inserts a notification. The event id is unique:
	// inserting the same event twice returns ErrAlreadyExists, which is
	// the store-level idempotence guarantee under redelivery.
	CreateNotification(ctx context.Context, n domain.Notification) error

	// ListByUser returns the newest notifications for a user.
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
}
