package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/socialsync/internal/model"
)

// InsertMessage stores a chat message. A missing id or timestamp is assigned.
func (db *DB) InsertMessage(m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO messages (id, sender_id, receiver_id, text, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.ReceiverID, m.Text, m.Image, toMillis(m.CreatedAt))
	return err
}

// ListConversation returns the messages exchanged between a and b in the
// order they were stored.
func (db *DB) ListConversation(a, b string) ([]model.Message, error) {
	rows, err := db.Query(`
		SELECT id, sender_id, receiver_id, text, image, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY seq`, a, b, b, a)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	msgs := []model.Message{}
	for rows.Next() {
		var (
			m  model.Message
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &ts); err != nil {
			return nil, err
		}
		m.CreatedAt = fromMillis(ts)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
