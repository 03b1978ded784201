// Package model holds the wire-level domain types shared by the live
// channel, the REST client and the synchronizers.
package model

import (
	"encoding/json"
	"time"
)

// Identity is a user as issued by the external identity provider. It is
// read-only from the synchronizer's point of view.
type Identity struct {
	ID        string `json:"uid"`
	Name      string `json:"displayName,omitempty"`
	AvatarURL string `json:"photoURL,omitempty"`
	Email     string `json:"email,omitempty"`
}

// DisplayName returns the name, falling back to the email and then the ID.
func (i Identity) DisplayName() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.Email != "":
		return i.Email
	default:
		return i.ID
	}
}

// Message is one chat message. Text and Image are both optional on the wire.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts both "id" and the document-store style "_id", and any
// createdAt form ParseTimestamp understands.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	aux := struct {
		*plain
		MongoID   string          `json:"_id"`
		CreatedAt json.RawMessage `json:"createdAt"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = aux.MongoID
	}
	ts, err := ParseTimestamp(aux.CreatedAt)
	if err != nil {
		return err
	}
	m.CreatedAt = ts
	return nil
}

// Involves reports whether the message belongs to the conversation between a and b.
func (m Message) Involves(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// Empty reports whether the message carries neither text nor image.
func (m Message) Empty() bool {
	return m.Text == "" && m.Image == ""
}

// OutgoingMessage is the send_message envelope. The server assigns the ID and
// echoes the stored message back through receive_message.
type OutgoingMessage struct {
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Notification is a per-user activity item (like, comment, share, message).
type Notification struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	SenderID  string    `json:"senderId,omitempty"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	PostID    string    `json:"postId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts any createdAt form ParseTimestamp understands.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	aux := struct {
		*plain
		CreatedAt json.RawMessage `json:"createdAt"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ts, err := ParseTimestamp(aux.CreatedAt)
	if err != nil {
		return err
	}
	n.CreatedAt = ts
	return nil
}
