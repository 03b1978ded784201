package live

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client-to-server events.
const (
	EventUserConnected = "user_connected"
	EventSendMessage   = "send_message"
	EventJoinUser      = "join_user"
)

// Server-to-client events.
const (
	EventUserOnline              = "user_online"
	EventUserOffline             = "user_offline"
	EventReceiveMessage          = "receive_message"
	EventOnlineUsers             = "getOnlineUsers"
	EventNewNotification         = "new_notification"
	EventNotificationsMarkedRead = "notifications_marked_read"
)

// Frame is one named event on the live channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserRef is the payload of events that carry a single user id.
type UserRef struct {
	UserID string `json:"userId"`
}

// NewFrame encodes payload into a frame. A nil payload produces no data.
func NewFrame(event string, payload any) (Frame, error) {
	f := Frame{Event: event}
	if payload == nil {
		return f, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	f.Data = data
	return f, nil
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s: empty payload", f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", f.Event, err)
	}
	return nil
}

var errNotAList = errors.New("payload is not a list")

// ParsePresence decodes a presence broadcast: a list of user ids, or a list
// of user objects carrying "uid" or "userId".
func ParsePresence(data json.RawMessage) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		if ids == nil {
			ids = []string{}
		}
		return ids, nil
	}
	var objs []struct {
		UID    string `json:"uid"`
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &objs); err != nil {
		return nil, errNotAList
	}
	ids = make([]string, 0, len(objs))
	for _, o := range objs {
		switch {
		case o.UID != "":
			ids = append(ids, o.UID)
		case o.UserID != "":
			ids = append(ids, o.UserID)
		}
	}
	return ids, nil
}

// ParseUserRef decodes a single user id sent either as a bare string or as
// an object with "userId" or "uid".
func ParseUserRef(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id, nil
	}
	var obj struct {
		UID    string `json:"uid"`
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("decode user reference: %w", err)
	}
	if obj.UserID != "" {
		return obj.UserID, nil
	}
	if obj.UID != "" {
		return obj.UID, nil
	}
	return "", errors.New("user reference has no id")
}
