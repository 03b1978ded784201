package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/socialsync/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run changes nothing.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.From != 2 || result.Version != 2 {
		t.Errorf("from = %d version = %d, want 2 (init + notifications)", result.From, result.Version)
	}
}

func TestResetAndMigrateAgain(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertUser(model.Identity{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := db.Reset(); err != nil {
		t.Fatal(err)
	}
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed || result.From != 0 {
		t.Errorf("result = %+v, want a fresh migration", result)
	}
	users, err := db.ListUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 0 {
		t.Errorf("got %d users after reset, want 0", len(users))
	}
}

func TestUsers(t *testing.T) {
	db := testDB(t)

	for _, u := range []model.Identity{{ID: "b", Name: "Bea"}, {ID: "a", Name: "Ann"}} {
		if err := db.UpsertUser(u); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.UpsertUser(model.Identity{ID: "b", Name: "Beatrice", Email: "b@x"}); err != nil {
		t.Fatal(err)
	}

	users, err := db.ListUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0].ID != "b" || users[1].ID != "a" {
		t.Fatalf("users = %+v, want registration order b, a", users)
	}
	if users[0].Name != "Beatrice" || users[0].Email != "b@x" {
		t.Errorf("update not applied: %+v", users[0])
	}

	u, err := db.GetUser("missing")
	if err != nil {
		t.Fatal(err)
	}
	if u != nil {
		t.Errorf("expected nil for missing user")
	}
}

func TestConversation(t *testing.T) {
	db := testDB(t)
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	msgs := []*model.Message{
		{SenderID: "a", ReceiverID: "b", Text: "1", CreatedAt: t0},
		{SenderID: "b", ReceiverID: "a", Text: "2", CreatedAt: t0},
		{SenderID: "a", ReceiverID: "c", Text: "other"},
		{SenderID: "a", ReceiverID: "b", Image: "http://img/3.png", CreatedAt: t0.Add(time.Minute)},
	}
	for _, m := range msgs {
		if err := db.InsertMessage(m); err != nil {
			t.Fatal(err)
		}
		if m.ID == "" {
			t.Fatal("id not assigned")
		}
	}

	got, err := db.ListConversation("b", "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	if got[0].Text != "1" || got[1].Text != "2" || got[2].Image != "http://img/3.png" {
		t.Errorf("order = %+v", got)
	}
	if !got[0].CreatedAt.Equal(t0) || got[0].ID != msgs[0].ID {
		t.Errorf("first = %+v", got[0])
	}

	none, err := db.ListConversation("x", "y")
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("empty conversation = %#v, want empty slice", none)
	}
}

func TestNotifications(t *testing.T) {
	db := testDB(t)
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, typ := range []string{"like", "comment", "share"} {
		n := &model.Notification{UserID: "a", Type: typ, CreatedAt: t0.Add(time.Duration(i) * time.Second)}
		if err := db.InsertNotification(n); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.InsertNotification(&model.Notification{UserID: "b", Type: "like"}); err != nil {
		t.Fatal(err)
	}

	items, err := db.ListNotifications("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 || items[0].Type != "share" || items[2].Type != "like" {
		t.Fatalf("items = %+v, want newest first", items)
	}

	n, err := db.UnreadNotificationCount("a")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("unread = %d, want 3", n)
	}

	changed, err := db.MarkNotificationsRead("a")
	if err != nil {
		t.Fatal(err)
	}
	if changed != 3 {
		t.Errorf("changed = %d, want 3", changed)
	}
	if n, _ := db.UnreadNotificationCount("a"); n != 0 {
		t.Errorf("unread after mark = %d, want 0", n)
	}
	if n, _ := db.UnreadNotificationCount("b"); n != 1 {
		t.Errorf("other user unread = %d, want 1", n)
	}
	if changed, _ := db.MarkNotificationsRead("a"); changed != 0 {
		t.Errorf("second mark changed %d rows", changed)
	}
}
