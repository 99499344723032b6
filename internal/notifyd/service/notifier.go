package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ducgiangtran/switchboard/internal/notifyd/domain"
	"github.com/ducgiangtran/switchboard/internal/notifyd/store"
	"github.com/ducgiangtran/switchboard/internal/presence"
	"github.com/ducgiangtran/switchboard/pkg/idx"
)

// StoreNotifier turns presence events into persisted notifications. It is
// the consumer's side effect: once CreateNotification succeeds the event
// may be acked.
type StoreNotifier struct {
	Store  store.Store
	Logger *slog.Logger
}

// Notify persists one notification for the event. A duplicate event id is
// treated as success: the notification already exists, so redelivering the
// event must not fail the ack.
func (n *StoreNotifier) Notify(ctx context.Context, event presence.Event) error {
	notification := domain.Notification{
		ID:      idx.New().String(),
		EventID: event.ID,
		UserID:  event.UserID,
		Kind:    string(event.Kind),
		Message: messageFor(event),
	}

	err := n.Store.Notifications().CreateNotification(ctx, notification)
	if errors.Is(err, store.ErrAlreadyExists) {
		n.logger().Info("notification already recorded", "event_id", event.ID, "user_id", event.UserID)
		return nil
	}
	return err
}

func messageFor(event presence.Event) string {
	switch event.Kind {
	case presence.KindOnline:
		return fmt.Sprintf("user %s is now online", event.UserID)
	case presence.KindOffline:
		return fmt.Sprintf("user %s went offline", event.UserID)
	default:
		return fmt.Sprintf("user %s presence changed", event.UserID)
	}
}

func (n *StoreNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}
