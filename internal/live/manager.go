package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/logging"
	"github.com/matheus3301/socialsync/internal/model"
	"github.com/matheus3301/socialsync/internal/session"
	"github.com/matheus3301/socialsync/internal/status"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Emit when no channel is open.
var ErrNotConnected = errors.New("live channel not connected")

// HandlerFunc receives every inbound frame, in arrival order, on the
// channel's read goroutine.
type HandlerFunc func(Frame)

// Manager owns the single live channel of a session. At most one channel is
// open at a time and it always belongs to one identity.
type Manager struct {
	dialer  Dialer
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	// ops serializes Connect and Disconnect. The read loop never takes it.
	ops    sync.Mutex
	active atomic.Pointer[channel]

	handlersMu sync.RWMutex
	handlers   []HandlerFunc
}

type channel struct {
	conn    Conn
	userID  string
	closing atomic.Bool
	done    chan struct{}
}

// NewManager creates a connection manager. machine and b may be nil in tests.
func NewManager(dialer Dialer, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Manager {
	if machine == nil {
		machine = status.NewMachine(b)
	}
	return &Manager{
		dialer:  dialer,
		machine: machine,
		bus:     b,
		logger:  logging.OrNop(logger),
	}
}

// RegisterHandler adds a handler for inbound frames.
func (m *Manager) RegisterHandler(h HandlerFunc) {
	m.handlersMu.Lock()
	m.handlers = append(m.handlers, h)
	m.handlersMu.Unlock()
}

// Connect opens the live channel for userID and announces it with
// user_connected. It is a no-op when userID is already connected; a channel
// held by another identity is closed first.
func (m *Manager) Connect(ctx context.Context, userID string) error {
	if err := session.ValidateUserID(userID); err != nil {
		return err
	}
	m.ops.Lock()
	defer m.ops.Unlock()

	if ch := m.active.Load(); ch != nil {
		if ch.userID == userID {
			return nil
		}
		m.logger.Info("identity changed, closing live channel", zap.String("from", ch.userID), zap.String("to", userID))
		m.release(ch)
	}

	if err := m.machine.Transition(status.Connecting); err != nil {
		m.logger.Warn("unexpected connection state", zap.Error(err))
	}
	m.logger.Info("connecting live channel", zap.String("user_id", userID))

	conn, err := m.dialer.Dial(ctx, userID)
	if err != nil {
		_ = m.machine.Transition(status.Error)
		return fmt.Errorf("connect live channel: %w", err)
	}
	hello, err := NewFrame(EventUserConnected, UserRef{UserID: userID})
	if err == nil {
		err = conn.WriteFrame(hello)
	}
	if err != nil {
		_ = conn.Close()
		_ = m.machine.Transition(status.Error)
		return fmt.Errorf("announce identity: %w", err)
	}

	ch := &channel{conn: conn, userID: userID, done: make(chan struct{})}
	m.active.Store(ch)
	_ = m.machine.Transition(status.Online)
	go m.readLoop(ch)
	return nil
}

// Disconnect closes the channel, if any, and waits for its read loop to exit.
func (m *Manager) Disconnect() {
	m.ops.Lock()
	defer m.ops.Unlock()
	if ch := m.active.Load(); ch != nil {
		m.release(ch)
	}
	m.machine.Settle()
}

// SetIdentity follows identity changes: nil disconnects, anything else
// connects (reconnecting if a different identity held the channel).
func (m *Manager) SetIdentity(ctx context.Context, id *model.Identity) error {
	if id == nil {
		m.Disconnect()
		return nil
	}
	return m.Connect(ctx, id.ID)
}

// Emit sends one event. There is no queueing or retry: with the channel down
// the event is rejected with ErrNotConnected.
func (m *Manager) Emit(event string, payload any) error {
	ch := m.active.Load()
	if ch == nil {
		return ErrNotConnected
	}
	f, err := NewFrame(event, payload)
	if err != nil {
		return err
	}
	if err := ch.conn.WriteFrame(f); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Identity returns the connected user id, or "" when no channel is open.
func (m *Manager) Identity() string {
	if ch := m.active.Load(); ch != nil {
		return ch.userID
	}
	return ""
}

// Connected reports whether a channel is open.
func (m *Manager) Connected() bool {
	return m.active.Load() != nil
}

// Bus returns the bus inbound events are published on.
func (m *Manager) Bus() *bus.Bus { return m.bus }

// State returns the connection state.
func (m *Manager) State() status.State {
	return m.machine.Current()
}

// release closes ch and blocks until its read loop has returned. Caller holds ops.
func (m *Manager) release(ch *channel) {
	m.active.CompareAndSwap(ch, nil)
	ch.closing.Store(true)
	if err := ch.conn.Close(); err != nil {
		m.logger.Debug("close live channel", zap.Error(err))
	}
	<-ch.done
	if m.machine.Current() == status.Online {
		_ = m.machine.Transition(status.Offline)
	}
	m.logger.Info("live channel closed", zap.String("user_id", ch.userID))
}

func (m *Manager) readLoop(ch *channel) {
	defer close(ch.done)
	for {
		f, err := ch.conn.ReadFrame()
		var malformed *MalformedFrameError
		if errors.As(err, &malformed) {
			m.logger.Warn("skipping malformed live frame", zap.String("user_id", ch.userID), zap.Error(err))
			continue
		}
		if err != nil {
			if ch.closing.Load() {
				return
			}
			m.dropped(ch, err)
			return
		}
		m.dispatch(f)
	}
}

func (m *Manager) dropped(ch *channel, err error) {
	if !m.active.CompareAndSwap(ch, nil) {
		return
	}
	_ = ch.conn.Close()
	if IsClosed(err) {
		m.logger.Info("live channel closed by server", zap.String("user_id", ch.userID))
	} else {
		m.logger.Warn("live channel dropped", zap.String("user_id", ch.userID), zap.Error(err))
	}
	_ = m.machine.Transition(status.Dropped)
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(bus.KindChannelDropped, UserRef{UserID: ch.userID}))
	}
}

func (m *Manager) dispatch(f Frame) {
	m.handlersMu.RLock()
	handlers := m.handlers
	m.handlersMu.RUnlock()
	for _, h := range handlers {
		h(f)
	}
}
