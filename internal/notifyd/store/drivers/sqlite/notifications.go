package sqlite

import (
	"context"
	"database/sql"

	"github.com/ducgiangtran/switchboard/internal/notifyd/domain"
)

type notificationsRepo struct {
	db *sql.DB
}

func (r *notificationsRepo) CreateNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, event_id, user_id, kind, message)
		 VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.EventID, n.UserID, n.Kind, n.Message)
	return mapConstraint(err)
}

func (r *notificationsRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, user_id, kind, message, created_at
		 FROM notifications WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.EventID, &n.UserID, &n.Kind, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
