// Package chat keeps the presence set, the peer list, the active conversation
// and the unread counters of a session in sync with the live channel.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/live"
	"github.com/matheus3301/socialsync/internal/logging"
	"github.com/matheus3301/socialsync/internal/model"
	"go.uber.org/zap"
)

var (
	ErrNoPeerSelected = errors.New("no conversation selected")
	ErrEmptyMessage   = errors.New("message has neither text nor image")
	ErrSuperseded     = errors.New("history load superseded")
	ErrStopped        = errors.New("chat synchronizer not running")
	ErrUnknownPeer    = errors.New("unknown peer")
)

// Emitter sends events on the live channel.
type Emitter interface {
	Emit(event string, payload any) error
}

// Backend is the request/response surface the synchronizer reads from.
type Backend interface {
	ListUsers(ctx context.Context) ([]model.Identity, error)
	ListMessages(ctx context.Context, a, b string) ([]model.Message, error)
}

// Change is the payload of chat.state_changed events.
type Change struct {
	Reason string `json:"reason"`
	Peer   string `json:"peer,omitempty"`
}

// Change reasons.
const (
	ReasonPeers    = "peers"
	ReasonSelected = "selected"
	ReasonHistory  = "history"
	ReasonMessage  = "message"
	ReasonPresence = "presence"
	ReasonRead     = "read"
	ReasonReset    = "reset"
)

// SendFailure is the payload of chat.send_failed events.
type SendFailure struct {
	ReceiverID string `json:"receiverId"`
	Error      string `json:"error"`
}

// Synchronizer is an actor: one goroutine owns the state and applies every
// live event and user command to it, in arrival order, through pure reducers.
// Readers get the latest immutable snapshot.
type Synchronizer struct {
	backend Backend
	emitter Emitter
	bus     *bus.Bus
	logger  *zap.Logger
	opts    Options
	now     func() time.Time

	mu  sync.Mutex
	run *actor

	snap atomic.Pointer[State]
}

type command struct {
	fn   func(*actor)
	done chan struct{}
}

// actor is the running loop of one identity. Only the loop goroutine touches
// state, gen and cancelLoad.
type actor struct {
	cmds   chan command
	done   chan struct{}
	cancel context.CancelFunc
	unsub  func()

	state      State
	gen        uint64
	cancelLoad context.CancelFunc
}

// NewSynchronizer creates a stopped synchronizer.
func NewSynchronizer(backend Backend, emitter Emitter, b *bus.Bus, opts Options, logger *zap.Logger) *Synchronizer {
	s := &Synchronizer{
		backend: backend,
		emitter: emitter,
		bus:     b,
		logger:  logging.OrNop(logger),
		opts:    opts,
		now:     time.Now,
	}
	empty := WithSelf("")
	s.snap.Store(&empty)
	return s
}

// Start begins synchronizing for self. A running loop for another identity
// is stopped first; starting twice for the same identity is a no-op.
func (s *Synchronizer) Start(self string) error {
	if self == "" {
		return errors.New("chat: empty identity")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != nil {
		if s.snap.Load().Self == self {
			return nil
		}
		s.stopLocked()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &actor{
		cmds:   make(chan command),
		done:   make(chan struct{}),
		cancel: cancel,
		state:  WithSelf(self),
	}
	var events <-chan bus.Event
	if s.bus != nil {
		events, a.unsub = s.bus.Subscribe("live.", 256)
	}
	initial := a.state
	s.snap.Store(&initial)
	s.run = a
	go s.loop(ctx, a, events)
	s.logger.Info("chat synchronizer started", zap.String("user_id", self))
	return nil
}

// Stop ends the loop, cancels any history load and discards the state.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Synchronizer) stopLocked() {
	a := s.run
	if a == nil {
		return
	}
	s.run = nil
	a.cancel()
	<-a.done
	if a.unsub != nil {
		a.unsub()
	}
	empty := WithSelf("")
	s.snap.Store(&empty)
	s.publish(bus.KindChatState, Change{Reason: ReasonReset})
	s.logger.Info("chat synchronizer stopped", zap.String("user_id", a.state.Self))
}

func (s *Synchronizer) loop(ctx context.Context, a *actor, events <-chan bus.Event) {
	defer close(a.done)
	defer func() {
		if a.cancelLoad != nil {
			a.cancelLoad()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-a.cmds:
			cmd.fn(a)
			close(cmd.done)
		case evt, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handleEvent(a, evt)
		}
	}
}

func (s *Synchronizer) handleEvent(a *actor, evt bus.Event) {
	switch evt.Kind {
	case bus.KindPresence:
		ids, ok := evt.Payload.([]string)
		if !ok {
			return
		}
		s.commit(a, ApplyPresence(a.state, ids), Change{Reason: ReasonPresence})
	case bus.KindMessage:
		msg, ok := evt.Payload.(model.Message)
		if !ok {
			return
		}
		s.commit(a, ApplyIncoming(a.state, msg, s.opts), Change{Reason: ReasonMessage, Peer: msg.SenderID})
	case bus.KindNotificationsRead:
		s.commit(a, ClearUnread(a.state), Change{Reason: ReasonRead})
	}
}

// commit publishes next as the current snapshot.
func (s *Synchronizer) commit(a *actor, next State, change Change) {
	a.state = next
	snap := next
	s.snap.Store(&snap)
	s.publish(bus.KindChatState, change)
}

func (s *Synchronizer) publish(kind string, payload any) {
	if s.bus != nil {
		s.bus.Publish(bus.NewEvent(kind, payload))
	}
}

// do runs fn on the actor goroutine and waits for it.
func (s *Synchronizer) do(ctx context.Context, fn func(*actor)) error {
	s.mu.Lock()
	a := s.run
	s.mu.Unlock()
	if a == nil {
		return ErrStopped
	}
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case a.cmds <- cmd:
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-a.done:
		return ErrStopped
	}
}

// Snapshot returns the latest state.
func (s *Synchronizer) Snapshot() State {
	return *s.snap.Load()
}

// IsOnline reports whether id is in the latest presence broadcast.
func (s *Synchronizer) IsOnline(id string) bool {
	return s.snap.Load().Presence.IsOnline(id)
}

// LoadPeers fetches the user list and keeps everyone but the current user.
func (s *Synchronizer) LoadPeers(ctx context.Context) ([]model.Identity, error) {
	if s.Snapshot().Self == "" {
		return nil, ErrStopped
	}
	users, err := s.backend.ListUsers(ctx)
	if err != nil {
		s.logger.Warn("load peers failed", zap.Error(err))
		return nil, fmt.Errorf("load peers: %w", err)
	}
	var peers []model.Identity
	err = s.do(ctx, func(a *actor) {
		next := ApplyPeers(a.state, users)
		peers = next.Peers
		s.commit(a, next, Change{Reason: ReasonPeers})
	})
	return peers, err
}

// Select opens the conversation with peer: its unread counter is reset and
// its history is loaded, replacing the message list.
func (s *Synchronizer) Select(ctx context.Context, peer string) ([]model.Message, error) {
	if peer == "" {
		return nil, ErrUnknownPeer
	}
	var ld historyLoad
	err := s.do(ctx, func(a *actor) {
		s.commit(a, ApplySelect(a.state, peer), Change{Reason: ReasonSelected, Peer: peer})
		ld = s.beginLoad(ctx, a, peer)
	})
	if err != nil {
		return nil, err
	}
	return s.finishLoad(ctx, ld)
}

// LoadHistory fetches the conversation between the current user and peer and
// replaces the message list with it. Starting another load cancels this one;
// a result that arrives after it was superseded, or for a peer that is no
// longer selected, is discarded and ErrSuperseded is returned.
func (s *Synchronizer) LoadHistory(ctx context.Context, peer string) ([]model.Message, error) {
	var ld historyLoad
	err := s.do(ctx, func(a *actor) {
		ld = s.beginLoad(ctx, a, peer)
	})
	if err != nil {
		return nil, err
	}
	return s.finishLoad(ctx, ld)
}

type historyLoad struct {
	gen  uint64
	self string
	peer string
	ctx  context.Context
}

// beginLoad cancels the load in flight and claims the next generation. It
// runs on the actor goroutine.
func (s *Synchronizer) beginLoad(ctx context.Context, a *actor, peer string) historyLoad {
	if a.cancelLoad != nil {
		a.cancelLoad()
	}
	a.gen++
	ld := historyLoad{gen: a.gen, self: a.state.Self, peer: peer}
	ld.ctx, a.cancelLoad = context.WithCancel(ctx)
	return ld
}

func (s *Synchronizer) finishLoad(ctx context.Context, ld historyLoad) ([]model.Message, error) {
	peer := ld.peer
	msgs, fetchErr := s.backend.ListMessages(ld.ctx, ld.self, peer)

	var applied bool
	err := s.do(context.WithoutCancel(ctx), func(a *actor) {
		if a.gen != ld.gen {
			return
		}
		a.cancelLoad()
		a.cancelLoad = nil
		if a.state.Selected != "" && a.state.Selected != peer {
			s.commit(a, ApplyHistoryFailed(a.state), Change{Reason: ReasonHistory, Peer: a.state.Selected})
			return
		}
		applied = true
		if fetchErr != nil {
			s.commit(a, ApplyHistoryFailed(a.state), Change{Reason: ReasonHistory, Peer: peer})
			return
		}
		s.commit(a, ApplyHistory(a.state, msgs), Change{Reason: ReasonHistory, Peer: peer})
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrSuperseded
	}
	if fetchErr != nil {
		s.logger.Warn("load history failed", zap.String("peer", peer), zap.Error(fetchErr))
		return nil, fmt.Errorf("load history: %w", fetchErr)
	}
	return msgs, nil
}

// Send emits a message to the selected peer. The message is not rendered
// until the server echoes it back, and a failed emit is not retried.
func (s *Synchronizer) Send(text, image string) error {
	snap := s.Snapshot()
	if snap.Self == "" {
		return ErrStopped
	}
	if snap.Selected == "" {
		return ErrNoPeerSelected
	}
	if text == "" && image == "" {
		return ErrEmptyMessage
	}
	out := model.OutgoingMessage{
		SenderID:   snap.Self,
		ReceiverID: snap.Selected,
		Text:       text,
		Image:      image,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.emitter.Emit(live.EventSendMessage, out); err != nil {
		s.logger.Warn("send failed", zap.String("receiver_id", out.ReceiverID), zap.Error(err))
		s.publish(bus.KindSendFailed, SendFailure{ReceiverID: out.ReceiverID, Error: err.Error()})
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// MarkRead resets the unread counter of peer locally.
func (s *Synchronizer) MarkRead(ctx context.Context, peer string) error {
	return s.do(ctx, func(a *actor) {
		s.commit(a, MarkRead(a.state, peer), Change{Reason: ReasonRead, Peer: peer})
	})
}
