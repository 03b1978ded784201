package live

import (
	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/logging"
	"github.com/matheus3301/socialsync/internal/model"
	"go.uber.org/zap"
)

// EventHandler turns inbound frames into domain events on the bus. It keeps
// no state; the synchronizers subscribe to the bus independently.
type EventHandler struct {
	bus    *bus.Bus
	logger *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(b *bus.Bus, logger *zap.Logger) *EventHandler {
	return &EventHandler{bus: b, logger: logging.OrNop(logger)}
}

// Handle is the frame handler registered on the Manager.
func (h *EventHandler) Handle(f Frame) {
	switch f.Event {
	case EventOnlineUsers:
		ids, err := ParsePresence(f.Data)
		if err != nil {
			h.malformed(f, err)
			return
		}
		h.publish(bus.KindPresence, ids)
	case EventUserOnline, EventUserOffline:
		h.handleUserPresence(f)
	case EventReceiveMessage:
		var msg model.Message
		if err := f.Decode(&msg); err != nil {
			h.malformed(f, err)
			return
		}
		h.publish(bus.KindMessage, msg)
	case EventNewNotification:
		var n model.Notification
		if err := f.Decode(&n); err != nil {
			h.malformed(f, err)
			return
		}
		h.publish(bus.KindNotification, n)
	case EventNotificationsMarkedRead:
		var userID string
		if len(f.Data) > 0 {
			userID, _ = ParseUserRef(f.Data)
		}
		h.publish(bus.KindNotificationsRead, userID)
	default:
		h.logger.Debug("ignoring live event", zap.String("event", f.Event))
	}
}

// handleUserPresence accepts both shapes seen for user_online/user_offline: a
// full list is a presence broadcast, a single id is informational only.
func (h *EventHandler) handleUserPresence(f Frame) {
	if ids, err := ParsePresence(f.Data); err == nil {
		h.publish(bus.KindPresence, ids)
		return
	}
	userID, err := ParseUserRef(f.Data)
	if err != nil {
		h.malformed(f, err)
		return
	}
	kind := bus.KindUserOnline
	if f.Event == EventUserOffline {
		kind = bus.KindUserOffline
	}
	h.publish(kind, userID)
}

func (h *EventHandler) publish(kind string, payload any) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(bus.NewEvent(kind, payload))
}

func (h *EventHandler) malformed(f Frame, err error) {
	h.logger.Warn("malformed live event", zap.String("event", f.Event), zap.Error(err))
}
