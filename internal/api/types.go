package api

import "github.com/matheus3301/socialsync/internal/model"

type GetStatusRequest struct{}

type StatusResponse struct {
	Session             string          `json:"session"`
	State               string          `json:"state"`
	BaseURL             string          `json:"baseUrl"`
	Identity            *model.Identity `json:"identity,omitempty"`
	Selected            string          `json:"selected,omitempty"`
	Peers               int             `json:"peers"`
	Online              int             `json:"online"`
	UnreadMessages      int             `json:"unreadMessages"`
	UnreadNotifications int             `json:"unreadNotifications"`
	UptimeMs            int64           `json:"uptimeMs"`
}

// LoginRequest signs an identity in. An empty identity falls back to the one
// configured for the session.
type LoginRequest struct {
	Identity model.Identity `json:"identity"`
}

type LoginResponse struct {
	Identity model.Identity `json:"identity"`
	State    string         `json:"state"`
}

type LogoutRequest struct{}

type ReconnectRequest struct{}

// Ack is the response of calls that return nothing else.
type Ack struct {
	Message string `json:"message,omitempty"`
}

type ListPeersRequest struct {
	Refresh bool `json:"refresh,omitempty"`
}

// Peer is a conversation partner with its live state.
type Peer struct {
	model.Identity
	Online   bool `json:"online"`
	Unread   int  `json:"unread"`
	Selected bool `json:"selected,omitempty"`
}

type ListPeersResponse struct {
	Peers []Peer `json:"peers"`
}

type SelectPeerRequest struct {
	PeerID string `json:"peerId"`
}

type ListMessagesRequest struct{}

type MessagesResponse struct {
	PeerID   string          `json:"peerId"`
	Loading  bool            `json:"loading,omitempty"`
	Messages []model.Message `json:"messages"`
}

// SendMessageRequest sends to PeerID, or to the selected peer when empty.
type SendMessageRequest struct {
	PeerID string `json:"peerId,omitempty"`
	Text   string `json:"text,omitempty"`
	Image  string `json:"image,omitempty"`
}

type MarkReadRequest struct {
	PeerID string `json:"peerId"`
}

// ListNotificationsRequest with Refresh fetches from the backend, which also
// marks everything read; otherwise the held list is returned.
type ListNotificationsRequest struct {
	Refresh bool `json:"refresh,omitempty"`
}

type NotificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

type MarkNotificationsReadRequest struct{}

// WatchEventsRequest filters the stream by kind prefix. None means all.
type WatchEventsRequest struct {
	Prefixes []string `json:"prefixes,omitempty"`
}

// Event is one bus event on the watch stream.
type Event struct {
	ID               string   `json:"id"`
	Session          string   `json:"session"`
	Kind             string   `json:"kind"`
	OccurredAtUnixMs int64    `json:"occurredAtUnixMs"`
	Payload          *Payload `json:"payload"`
}
