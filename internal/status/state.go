package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/socialsync/internal/bus"
)

// State represents the live channel's connection state.
type State string

const (
	Offline    State = "OFFLINE"
	Connecting State = "CONNECTING"
	Online     State = "ONLINE"
	Dropped    State = "DROPPED"
	Error      State = "ERROR"
)

// validTransitions defines allowed state transitions. There is no automatic
// reconnect, so DROPPED only leaves through an explicit Connect or a logout.
var validTransitions = map[State][]State{
	Offline:    {Connecting},
	Connecting: {Online, Offline, Error},
	Online:     {Offline, Dropped},
	Dropped:    {Connecting, Offline},
	Error:      {Connecting, Offline},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Offline state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Offline,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(bus.KindConnectionStatus, StatusChange{From: from, To: to}))
	}
	return nil
}

// Settle moves to Offline unless the machine is already there.
func (m *Machine) Settle() {
	if m.Current() != Offline {
		_ = m.Transition(Offline)
	}
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}
