// Package livetest provides an in-memory live channel for tests.
package livetest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/matheus3301/socialsync/internal/live"
)

// ErrDropped is returned by ReadFrame after Drop.
var ErrDropped = errors.New("livetest: connection dropped")

// ErrClosed is returned by reads and writes after Close.
var ErrClosed = errors.New("livetest: connection closed")

// Conn is a live.Conn backed by channels. Frames pushed with Push are read
// by the manager; frames the client writes are recorded.
type Conn struct {
	UserID string

	in      chan live.Frame
	closed  chan struct{}
	dropped chan struct{}
	once    sync.Once
	drop    sync.Once

	mu      sync.Mutex
	written []live.Frame
	wrote   chan struct{}
}

// NewConn returns an open connection for userID.
func NewConn(userID string) *Conn {
	return &Conn{
		UserID:  userID,
		in:      make(chan live.Frame, 64),
		closed:  make(chan struct{}),
		dropped: make(chan struct{}),
		wrote:   make(chan struct{}, 64),
	}
}

// ReadFrame implements live.Conn.
func (c *Conn) ReadFrame() (live.Frame, error) {
	select {
	case f := <-c.in:
		return f, nil
	case <-c.closed:
		return live.Frame{}, ErrClosed
	case <-c.dropped:
		return live.Frame{}, ErrDropped
	}
}

// WriteFrame implements live.Conn.
func (c *Conn) WriteFrame(f live.Frame) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, f)
	c.mu.Unlock()
	select {
	case c.wrote <- struct{}{}:
	default:
	}
	return nil
}

// Close implements live.Conn.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Push queues a server-to-client event. payload is JSON-encoded.
func (c *Conn) Push(event string, payload any) {
	f, err := live.NewFrame(event, payload)
	if err != nil {
		panic(err)
	}
	c.in <- f
}

// PushRaw queues a frame with a literal JSON payload.
func (c *Conn) PushRaw(event, data string) {
	c.in <- live.Frame{Event: event, Data: json.RawMessage(data)}
}

// Drop simulates the server going away.
func (c *Conn) Drop() {
	c.drop.Do(func() { close(c.dropped) })
}

// Written returns a copy of the frames the client sent.
func (c *Conn) Written() []live.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]live.Frame(nil), c.written...)
}

// WrittenEvents returns the frames the client sent with the given event name.
func (c *Conn) WrittenEvents(event string) []live.Frame {
	var out []live.Frame
	for _, f := range c.Written() {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

// Dialer hands out a fresh Conn per Dial and remembers them in order.
type Dialer struct {
	mu    sync.Mutex
	conns []*Conn
	Err   error
}

// Dial implements live.Dialer.
func (d *Dialer) Dial(ctx context.Context, userID string) (live.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	c := NewConn(userID)
	d.conns = append(d.conns, c)
	return c, nil
}

// Dials returns how many channels were opened.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Last returns the most recently dialed connection, or nil.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Conn returns the i-th dialed connection.
func (d *Dialer) Conn(i int) *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}
