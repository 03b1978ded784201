package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/matheus3301/socialsync/internal/model"
)

// UpsertUser inserts or updates a user profile keyed by uid.
func (db *DB) UpsertUser(u model.Identity) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO users (uid, display_name, email, photo_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			photo_url = excluded.photo_url,
			updated_at = excluded.updated_at`,
		u.ID, u.Name, u.Email, u.AvatarURL, now, now)
	return err
}

// ListUsers returns every user in registration order.
func (db *DB) ListUsers() ([]model.Identity, error) {
	rows, err := db.Query(`
		SELECT uid, display_name, email, photo_url
		FROM users
		ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	users := []model.Identity{}
	for rows.Next() {
		var u model.Identity
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser returns a single user, or nil when uid is unknown.
func (db *DB) GetUser(uid string) (*model.Identity, error) {
	var u model.Identity
	err := db.QueryRow(`SELECT uid, display_name, email, photo_url FROM users WHERE uid = ?`, uid).
		Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
