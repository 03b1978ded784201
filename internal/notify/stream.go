// Package notify holds the per-user notification list fed by the live
// channel and the notifications REST endpoints.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/live"
	"github.com/matheus3301/socialsync/internal/logging"
	"github.com/matheus3301/socialsync/internal/model"
	"go.uber.org/zap"
)

// ErrStopped is returned when no user is joined.
var ErrStopped = errors.New("notification stream not running")

// Backend is the notifications REST surface.
type Backend interface {
	ListNotifications(ctx context.Context, uid string) ([]model.Notification, error)
	MarkNotificationsRead(ctx context.Context, uid string) error
	UnreadNotificationCount(ctx context.Context, uid string) (int, error)
}

// Emitter sends events on the live channel.
type Emitter interface {
	Emit(event string, payload any) error
}

// Change is the payload of notify.state_changed events.
type Change struct {
	Reason string `json:"reason"`
	Unread int    `json:"unread"`
}

// Stream keeps the notifications of one user, newest first.
type Stream struct {
	backend Backend
	emitter Emitter
	bus     *bus.Bus
	logger  *zap.Logger

	// life serializes Start and Stop.
	life sync.Mutex

	mu     sync.Mutex
	self   string
	items  []model.Notification
	unread int
	stop   func()
}

// NewStream creates a stopped stream.
func NewStream(backend Backend, emitter Emitter, b *bus.Bus, logger *zap.Logger) *Stream {
	return &Stream{
		backend: backend,
		emitter: emitter,
		bus:     b,
		logger:  logging.OrNop(logger),
	}
}

// Start joins the per-user notification room and begins folding live
// notifications into the list. A stream already joined for self is left alone.
func (s *Stream) Start(self string) error {
	s.life.Lock()
	defer s.life.Unlock()

	s.mu.Lock()
	running := s.self == self && s.stop != nil
	s.mu.Unlock()
	if running {
		return nil
	}
	s.stopLocked()

	// Subscribe before joining so nothing pushed right after the join is lost.
	var events <-chan bus.Event
	unsub := func() {}
	if s.bus != nil {
		events, unsub = s.bus.Subscribe("live.notification", 64)
	}
	if err := s.emitter.Emit(live.EventJoinUser, live.UserRef{UserID: self}); err != nil {
		unsub()
		return fmt.Errorf("join notification room: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.self = self
	s.items = nil
	s.unread = 0
	s.stop = func() {
		cancel()
		<-done
		unsub()
	}
	s.mu.Unlock()

	go s.loop(ctx, done, events)
	return nil
}

// Rejoin announces the joined user again, for a freshly opened channel.
// Held notifications are kept.
func (s *Stream) Rejoin() error {
	uid, err := s.user()
	if err != nil {
		return err
	}
	if err := s.emitter.Emit(live.EventJoinUser, live.UserRef{UserID: uid}); err != nil {
		return fmt.Errorf("join notification room: %w", err)
	}
	return nil
}

// Stop leaves the stream and discards the held notifications.
func (s *Stream) Stop() {
	s.life.Lock()
	defer s.life.Unlock()
	s.stopLocked()
}

func (s *Stream) stopLocked() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	stop()

	s.mu.Lock()
	s.self = ""
	s.items = nil
	s.unread = 0
	s.mu.Unlock()
}

func (s *Stream) loop(ctx context.Context, done chan struct{}, events <-chan bus.Event) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			switch p := evt.Payload.(type) {
			case model.Notification:
				s.prepend(p)
			case string:
				if evt.Kind == bus.KindNotificationsRead {
					s.markAllLocal(p)
				}
			}
		}
	}
}

func (s *Stream) prepend(n model.Notification) {
	s.mu.Lock()
	s.items = append([]model.Notification{n}, s.items...)
	if !n.Read {
		s.unread++
	}
	unread := s.unread
	s.mu.Unlock()
	s.publish("new", unread)
}

// markAllLocal flags every held notification read. uid is the user the
// server reported; an empty uid applies to the joined user.
func (s *Stream) markAllLocal(uid string) {
	s.mu.Lock()
	if uid != "" && uid != s.self {
		s.mu.Unlock()
		return
	}
	items := make([]model.Notification, len(s.items))
	for i, n := range s.items {
		n.Read = true
		items[i] = n
	}
	s.items = items
	s.unread = 0
	s.mu.Unlock()
	s.publish("read", 0)
}

func (s *Stream) publish(reason string, unread int) {
	if s.bus != nil {
		s.bus.Publish(bus.NewEvent(bus.KindNotifyState, Change{Reason: reason, Unread: unread}))
	}
}

func (s *Stream) user() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.self == "" {
		return "", ErrStopped
	}
	return s.self, nil
}

// Load fetches the stored notifications, merges them with those received
// live (dropping duplicate ids, newest first) and then marks them all read
// on the server. A failed mark-read is logged and reported through marked;
// the list is still returned.
func (s *Stream) Load(ctx context.Context) (items []model.Notification, marked bool, err error) {
	uid, err := s.user()
	if err != nil {
		return nil, false, err
	}
	fetched, err := s.backend.ListNotifications(ctx, uid)
	if err != nil {
		s.logger.Warn("load notifications failed", zap.Error(err))
		return nil, false, fmt.Errorf("load notifications: %w", err)
	}

	s.mu.Lock()
	if s.self != uid {
		s.mu.Unlock()
		return nil, false, ErrStopped
	}
	s.items = Merge(s.items, fetched)
	s.unread = countUnread(s.items)
	unread := s.unread
	s.mu.Unlock()
	s.publish("loaded", unread)

	if err := s.MarkAllRead(ctx); err != nil {
		s.logger.Warn("mark notifications read failed", zap.Error(err))
		return s.List(), false, nil
	}
	return s.List(), true, nil
}

// MarkAllRead persists the read state on the server, then applies it locally.
func (s *Stream) MarkAllRead(ctx context.Context) error {
	uid, err := s.user()
	if err != nil {
		return err
	}
	if err := s.backend.MarkNotificationsRead(ctx, uid); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	s.markAllLocal(uid)
	return nil
}

// UnreadCount asks the server for the unread badge and adopts its value.
func (s *Stream) UnreadCount(ctx context.Context) (int, error) {
	uid, err := s.user()
	if err != nil {
		return 0, err
	}
	n, err := s.backend.UnreadNotificationCount(ctx, uid)
	if err != nil {
		s.logger.Debug("unread count failed", zap.Error(err))
		return 0, fmt.Errorf("unread count: %w", err)
	}
	s.mu.Lock()
	changed := s.self == uid && s.unread != n
	if changed {
		s.unread = n
	}
	s.mu.Unlock()
	if changed {
		s.publish("count", n)
	}
	return n, nil
}

// List returns a copy of the held notifications, newest first.
func (s *Stream) List() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.items...)
}

// Unread returns the current badge value.
func (s *Stream) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// User returns the joined user, or "".
func (s *Stream) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}
