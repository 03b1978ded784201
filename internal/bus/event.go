package bus

import "time"

// Event kinds published by the daemon. Subscribers filter by prefix, so the
// part before the first dot is the namespace.
const (
	KindConnectionStatus = "connection.status_changed"

	KindPresence          = "live.presence"
	KindUserOnline        = "live.user_online"
	KindUserOffline       = "live.user_offline"
	KindMessage           = "live.message"
	KindNotification      = "live.notification"
	KindNotificationsRead = "live.notifications_read"
	KindChannelDropped    = "live.dropped"

	KindChatState   = "chat.state_changed"
	KindSendFailed  = "chat.send_failed"
	KindNotifyState = "notify.state_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}

// Namespace returns the prefix of the kind up to and including the first dot.
func (e Event) Namespace() string {
	for i := 0; i < len(e.Kind); i++ {
		if e.Kind[i] == '.' {
			return e.Kind[:i+1]
		}
	}
	return e.Kind
}
