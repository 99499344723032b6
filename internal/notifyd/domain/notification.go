package domain

import "time"

type Notification struct {
	ID        string
	EventID   string // presence event that produced this notification
	UserID    string
	Kind      string // "online" or "offline"
	Message   string
	CreatedAt time.Time
}
