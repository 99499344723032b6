package presence

import "time"

// Kind is a presence transition direction.
type Kind string

const (
	KindOnline  Kind = "online"
	KindOffline Kind = "offline"
)

// Broadcast channels. Each carries a bare {"userId": "..."} payload; the
// transition kind is implied by which channel it arrived on.
const (
	ChannelOnline  = "presence-online"
	ChannelOffline = "presence-offline"
)

// Event is one user presence transition. Events for the same user are
// meaningful only in order; events for different users are independent.
type Event struct {
	ID     string    `json:"eventId"`
	UserID string    `json:"userId"`
	Kind   Kind      `json:"kind"`
	At     time.Time `json:"at"`
}

// KindForChannel maps a broadcast channel name to its transition kind.
func KindForChannel(channel string) (Kind, bool) {
	switch channel {
	case ChannelOnline:
		return KindOnline, true
	case ChannelOffline:
		return KindOffline, true
	default:
		return "", false
	}
}
