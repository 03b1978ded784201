package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/live"
	"github.com/matheus3301/socialsync/internal/model"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu       sync.Mutex
	items    []model.Notification
	count    int
	marks    int
	markErr  error
	listHook func()
}

func (f *fakeBackend) ListNotifications(ctx context.Context, uid string) ([]model.Notification, error) {
	if f.listHook != nil {
		f.listHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Notification(nil), f.items...), nil
}

func (f *fakeBackend) MarkNotificationsRead(ctx context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.marks++
	return nil
}

func (f *fakeBackend) UnreadNotificationCount(ctx context.Context, uid string) (int, error) {
	return f.count, nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	frames []string
	refs   []live.UserRef
	err    error
}

func (e *fakeEmitter) Emit(event string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.frames = append(e.frames, event)
	if r, ok := payload.(live.UserRef); ok {
		e.refs = append(e.refs, r)
	}
	return nil
}

func newStream(t *testing.T) (*Stream, *fakeBackend, *fakeEmitter, *bus.Bus) {
	t.Helper()
	b := bus.New()
	be := &fakeBackend{}
	em := &fakeEmitter{}
	s := NewStream(be, em, b, nil)
	if err := s.Start("a"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Stop)
	return s, be, em, b
}

func waitList(t *testing.T, s *Stream, n int) []model.Notification {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		items := s.List()
		if len(items) == n {
			return items
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %d notifications, have %d", n, len(items))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartJoinsRoom(t *testing.T) {
	s, _, em, _ := newStream(t)
	if len(em.frames) != 1 || em.frames[0] != live.EventJoinUser || em.refs[0].UserID != "a" {
		t.Fatalf("frames = %v refs = %v", em.frames, em.refs)
	}
	if err := s.Start("a"); err != nil {
		t.Fatal(err)
	}
	if len(em.frames) != 1 {
		t.Errorf("second Start re-joined: %v", em.frames)
	}
}

func TestStartFailsWithoutChannel(t *testing.T) {
	s := NewStream(&fakeBackend{}, &fakeEmitter{err: live.ErrNotConnected}, bus.New(), nil)
	if err := s.Start("a"); !errors.Is(err, live.ErrNotConnected) {
		t.Fatalf("Start() = %v, want ErrNotConnected", err)
	}
	if _, _, err := s.Load(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Load() = %v, want ErrStopped", err)
	}
}

// joinPush delivers a notification the moment the room is joined.
type joinPush struct {
	bus *bus.Bus
}

func (e joinPush) Emit(event string, payload any) error {
	if event == live.EventJoinUser {
		e.bus.Publish(bus.NewEvent(bus.KindNotification, model.Notification{ID: "n1", Type: "like", CreatedAt: t0}))
	}
	return nil
}

func TestNotificationRightAfterJoinKept(t *testing.T) {
	b := bus.New()
	s := NewStream(&fakeBackend{}, joinPush{bus: b}, b, nil)
	if err := s.Start("a"); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if items := waitList(t, s, 1); items[0].ID != "n1" {
		t.Errorf("items = %+v", items)
	}
}

func TestFailedJoinLeavesNoSubscription(t *testing.T) {
	b := bus.New()
	s := NewStream(&fakeBackend{}, &fakeEmitter{err: live.ErrNotConnected}, b, nil)
	if err := s.Start("a"); err == nil {
		t.Fatal("Start() succeeded without a channel")
	}
	if n := b.Subscribers(); n != 0 {
		t.Errorf("subscribers = %d after failed Start, want 0", n)
	}
}

func TestLiveNotificationsPrepend(t *testing.T) {
	s, _, _, b := newStream(t)
	b.Publish(bus.NewEvent(bus.KindNotification, model.Notification{ID: "n1", Type: "like", CreatedAt: t0}))
	b.Publish(bus.NewEvent(bus.KindNotification, model.Notification{ID: "n2", Type: "comment", CreatedAt: t0.Add(time.Second)}))

	items := waitList(t, s, 2)
	if items[0].ID != "n2" || items[1].ID != "n1" {
		t.Errorf("order = %s,%s, want n2,n1", items[0].ID, items[1].ID)
	}
	if s.Unread() != 2 {
		t.Errorf("unread = %d, want 2", s.Unread())
	}
}

func TestNotificationsMarkedRead(t *testing.T) {
	s, _, _, b := newStream(t)
	b.Publish(bus.NewEvent(bus.KindNotification, model.Notification{ID: "n1"}))
	waitList(t, s, 1)

	b.Publish(bus.NewEvent(bus.KindNotificationsRead, "someone-else"))
	b.Publish(bus.NewEvent(bus.KindNotificationsRead, "a"))

	deadline := time.Now().Add(2 * time.Second)
	for s.Unread() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for read state")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !s.List()[0].Read {
		t.Error("notification not flagged read")
	}
}

func TestLoadMergesAndMarksRead(t *testing.T) {
	s, be, _, b := newStream(t)
	be.items = []model.Notification{
		{ID: "n2", Message: "stored", CreatedAt: t0.Add(2 * time.Second)},
		{ID: "n1", CreatedAt: t0},
	}
	// n2 arrives live while the fetch is in flight.
	be.listHook = func() {
		b.Publish(bus.NewEvent(bus.KindNotification, model.Notification{ID: "n2", Message: "live", CreatedAt: t0.Add(2 * time.Second)}))
		waitList(t, s, 1)
	}

	items, marked, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !marked {
		t.Error("Load() marked = false, want true")
	}
	if len(items) != 2 || items[0].ID != "n2" || items[1].ID != "n1" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Message != "live" {
		t.Errorf("duplicate resolved to %q, want the live copy", items[0].Message)
	}
	if be.marks != 1 {
		t.Errorf("mark-read requests = %d, want 1", be.marks)
	}
	for _, n := range items {
		if !n.Read {
			t.Errorf("%s not read after Load", n.ID)
		}
	}
	if s.Unread() != 0 {
		t.Errorf("unread = %d, want 0", s.Unread())
	}
}

func TestLoadKeepsListWhenMarkReadFails(t *testing.T) {
	s, be, _, _ := newStream(t)
	be.items = []model.Notification{{ID: "n1"}}
	be.markErr = errors.New("boom")

	items, marked, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if marked {
		t.Error("Load() marked = true after failed mark-read")
	}
	if len(items) != 1 || items[0].Read {
		t.Errorf("items = %+v", items)
	}
	if s.Unread() != 1 {
		t.Errorf("unread = %d, want 1", s.Unread())
	}
}

func TestUnreadCount(t *testing.T) {
	s, be, _, _ := newStream(t)
	be.count = 4
	n, err := s.UnreadCount(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 || s.Unread() != 4 {
		t.Errorf("count = %d unread = %d, want 4", n, s.Unread())
	}
}

func TestStopDiscards(t *testing.T) {
	s, _, _, b := newStream(t)
	b.Publish(bus.NewEvent(bus.KindNotification, model.Notification{ID: "n1"}))
	waitList(t, s, 1)

	s.Stop()
	if len(s.List()) != 0 || s.User() != "" {
		t.Errorf("state kept after Stop: %+v", s.List())
	}
	if b.Subscribers() != 0 {
		t.Errorf("subscribers = %d, want 0", b.Subscribers())
	}
}
