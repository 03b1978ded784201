package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/chat"
	"github.com/matheus3301/socialsync/internal/live"
	"github.com/matheus3301/socialsync/internal/live/livetest"
	"github.com/matheus3301/socialsync/internal/model"
	"github.com/matheus3301/socialsync/internal/notify"
	"github.com/matheus3301/socialsync/internal/status"
	"go.uber.org/zap"
)

type fakeBackend struct {
	users   []model.Identity
	history []model.Message
	notes   []model.Notification
	count   int
	marks   int
	markErr error
}

func (f *fakeBackend) ListUsers(ctx context.Context) ([]model.Identity, error) { return f.users, nil }

func (f *fakeBackend) ListMessages(ctx context.Context, a, b string) ([]model.Message, error) {
	return f.history, nil
}

func (f *fakeBackend) ListNotifications(ctx context.Context, uid string) ([]model.Notification, error) {
	return f.notes, nil
}

func (f *fakeBackend) MarkNotificationsRead(ctx context.Context, uid string) error {
	f.marks++
	return f.markErr
}

func (f *fakeBackend) UnreadNotificationCount(ctx context.Context, uid string) (int, error) {
	return f.count, nil
}

type harness struct {
	engine  *Engine
	dialer  *livetest.Dialer
	backend *fakeBackend
	bus     *bus.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := bus.New()
	d := &livetest.Dialer{}
	be := &fakeBackend{
		users: []model.Identity{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		count: 2,
	}
	logger := zap.NewNop()
	m := live.NewManager(d, status.NewMachine(b), b, logger)
	m.RegisterHandler(live.NewEventHandler(b, logger).Handle)
	c := chat.NewSynchronizer(be, m, b, chat.DefaultOptions(), logger)
	n := notify.NewStream(be, m, b, logger)
	e := NewEngine(m, c, n, logger)
	t.Cleanup(e.Close)
	return &harness{engine: e, dialer: d, backend: be, bus: b}
}

func waitFor(t *testing.T, what string, ok func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !ok() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoginStartsEverything(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Login(context.Background(), model.Identity{ID: "a", Name: "Ann"}); err != nil {
		t.Fatal(err)
	}

	conn := h.dialer.Last()
	if conn == nil || conn.UserID != "a" {
		t.Fatalf("dialed %+v", conn)
	}
	if len(conn.WrittenEvents(live.EventUserConnected)) != 1 || len(conn.WrittenEvents(live.EventJoinUser)) != 1 {
		t.Errorf("frames = %+v", conn.Written())
	}

	st := h.engine.Chat().Snapshot()
	if st.Self != "a" || len(st.Peers) != 2 {
		t.Errorf("chat state = %+v", st)
	}
	if n := h.engine.Notifications().Unread(); n != 2 {
		t.Errorf("badge = %d, want 2", n)
	}
	if id := h.engine.Identity(); id == nil || id.Name != "Ann" {
		t.Errorf("Identity() = %+v", id)
	}
}

func TestLoginSameIdentityOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for range 3 {
		if err := h.engine.Login(ctx, model.Identity{ID: "a"}); err != nil {
			t.Fatal(err)
		}
	}
	if h.dialer.Dials() != 1 {
		t.Errorf("dials = %d, want 1", h.dialer.Dials())
	}
}

func TestLoginOtherIdentityReconnects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Login(ctx, model.Identity{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	first := h.dialer.Last()
	if err := h.engine.Login(ctx, model.Identity{ID: "b"}); err != nil {
		t.Fatal(err)
	}
	if !first.Closed() {
		t.Error("first channel not closed")
	}
	if got := h.engine.Chat().Snapshot().Self; got != "b" {
		t.Errorf("chat self = %q, want b", got)
	}
	if got := h.engine.Notifications().User(); got != "b" {
		t.Errorf("notify user = %q, want b", got)
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Login(context.Background(), model.Identity{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	h.engine.Logout()
	h.engine.Logout()

	if !h.dialer.Last().Closed() {
		t.Error("channel open after logout")
	}
	if h.engine.Identity() != nil {
		t.Error("identity kept after logout")
	}
	if h.engine.Live().State() != status.Offline {
		t.Errorf("state = %s", h.engine.Live().State())
	}
	if err := h.engine.Chat().MarkRead(context.Background(), "b"); !errors.Is(err, chat.ErrStopped) {
		t.Errorf("chat still running: %v", err)
	}
	if h.bus.Subscribers() != 0 {
		t.Errorf("subscribers = %d, want 0", h.bus.Subscribers())
	}
}

func TestLiveFramesReachState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Login(ctx, model.Identity{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	h.backend.history = []model.Message{{ID: "1", SenderID: "b", ReceiverID: "a", Text: "hi"}}
	if _, err := h.engine.Chat().Select(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	conn := h.dialer.Last()
	conn.Push(live.EventOnlineUsers, []string{"a", "b"})
	conn.Push(live.EventReceiveMessage, model.Message{ID: "2", SenderID: "c", ReceiverID: "a", Text: "yo"})
	conn.Push(live.EventNewNotification, model.Notification{ID: "n1", UserID: "a", Type: "message"})

	c := h.engine.Chat()
	waitFor(t, "message", func() bool { return len(c.Snapshot().Messages) == 2 })
	waitFor(t, "notification", func() bool { return len(h.engine.Notifications().List()) == 1 })
	if !c.IsOnline("b") || c.IsOnline("c") {
		t.Errorf("presence = %v", c.Snapshot().Presence.IDs())
	}
	if chat.UnreadFor(c.Snapshot(), "c") != 1 {
		t.Errorf("unread = %v", c.Snapshot().Unread)
	}

	if err := h.engine.Reads().MarkConversationRead(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	if h.backend.marks != 0 {
		t.Error("conversation read was persisted")
	}
	if chat.UnreadFor(c.Snapshot(), "c") != 0 {
		t.Errorf("unread = %v", c.Snapshot().Unread)
	}
}

func TestViewNotificationsClearsCounters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Login(ctx, model.Identity{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	h.dialer.Last().Push(live.EventReceiveMessage, model.Message{ID: "1", SenderID: "c", ReceiverID: "a"})
	c := h.engine.Chat()
	waitFor(t, "unread", func() bool { return chat.UnreadFor(c.Snapshot(), "c") == 1 })

	h.backend.notes = []model.Notification{{ID: "n1", Type: "message"}}
	items, err := h.engine.Reads().ViewNotifications(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || !items[0].Read {
		t.Errorf("items = %+v", items)
	}
	if h.backend.marks != 1 {
		t.Errorf("mark-read requests = %d, want 1", h.backend.marks)
	}
	waitFor(t, "counters cleared", func() bool { return chat.TotalUnread(c.Snapshot()) == 0 })
}

func TestViewNotificationsKeepsCountersWhenMarkReadFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Login(ctx, model.Identity{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	conn := h.dialer.Last()
	conn.Push(live.EventReceiveMessage, model.Message{ID: "1", SenderID: "c", ReceiverID: "a"})
	c := h.engine.Chat()
	waitFor(t, "unread", func() bool { return chat.UnreadFor(c.Snapshot(), "c") == 1 })

	h.backend.notes = []model.Notification{{ID: "n1", Type: "message"}}
	h.backend.markErr = errors.New("backend down")
	items, err := h.engine.Reads().ViewNotifications(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Read {
		t.Errorf("items = %+v", items)
	}

	// Frames are folded in bus order, so a second message lands after any
	// read acknowledgement would have.
	conn.Push(live.EventReceiveMessage, model.Message{ID: "2", SenderID: "c", ReceiverID: "a"})
	waitFor(t, "second message", func() bool { return len(c.Snapshot().Messages) == 2 })
	if n := chat.UnreadFor(c.Snapshot(), "c"); n != 2 {
		t.Errorf("unread[c] = %d after failed mark-read, want 2", n)
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Reconnect(ctx); !errors.Is(err, ErrSignedOut) {
		t.Fatalf("Reconnect() signed out = %v", err)
	}
	if err := h.engine.Login(ctx, model.Identity{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	h.dialer.Last().Drop()
	waitFor(t, "dropped", func() bool { return h.engine.Live().State() == status.Dropped })

	if err := h.engine.Reconnect(ctx); err != nil {
		t.Fatal(err)
	}
	conn := h.dialer.Last()
	if h.dialer.Dials() != 2 || len(conn.WrittenEvents(live.EventJoinUser)) != 1 {
		t.Errorf("dials = %d frames = %+v", h.dialer.Dials(), conn.Written())
	}
}

func TestReconnectRacingLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := range 20 {
		if err := h.engine.Login(ctx, model.Identity{ID: "a"}); err != nil {
			t.Fatal(err)
		}
		h.dialer.Last().Drop()
		waitFor(t, "dropped", func() bool { return h.engine.Live().State() == status.Dropped })

		done := make(chan error, 1)
		go func() { done <- h.engine.Reconnect(ctx) }()
		h.engine.Logout()
		if err := <-done; err != nil && !errors.Is(err, ErrSignedOut) {
			t.Fatalf("round %d: Reconnect() = %v", i, err)
		}
		if h.engine.Identity() != nil || h.engine.Live().Connected() {
			t.Fatalf("round %d: channel open after logout (identity %v)", i, h.engine.Identity())
		}
	}
}

func TestLoginRejectsEmptyIdentity(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Login(context.Background(), model.Identity{}); err == nil {
		t.Fatal("Login() with empty id should fail")
	}
	if h.dialer.Dials() != 0 {
		t.Errorf("dials = %d", h.dialer.Dials())
	}
}
