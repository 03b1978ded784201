package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/socialsync/internal/model"
)

// InsertNotification stores a notification for n.UserID.
func (db *DB) InsertNotification(n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO notifications (id, user_id, sender_id, type, message, post_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.SenderID, n.Type, n.Message, n.PostID, n.Read, toMillis(n.CreatedAt))
	return err
}

// ListNotifications returns the notifications of uid, newest first.
func (db *DB) ListNotifications(uid string) ([]model.Notification, error) {
	rows, err := db.Query(`
		SELECT id, user_id, sender_id, type, message, post_id, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, seq DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []model.Notification{}
	for rows.Next() {
		var (
			n  model.Notification
			ts int64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.SenderID, &n.Type, &n.Message, &n.PostID, &n.Read, &ts); err != nil {
			return nil, err
		}
		n.CreatedAt = fromMillis(ts)
		items = append(items, n)
	}
	return items, rows.Err()
}

// MarkNotificationsRead flags every unread notification of uid and returns
// how many changed.
func (db *DB) MarkNotificationsRead(uid string) (int64, error) {
	res, err := db.Exec(`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, uid)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadNotificationCount counts the unread notifications of uid.
func (db *DB) UnreadNotificationCount(uid string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, uid).Scan(&n)
	return n, err
}
