package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20

	// DefaultPath is where the backend serves the live channel.
	DefaultPath = "/ws"
)

// Conn is one open live channel. ReadFrame is called from a single goroutine;
// WriteFrame and Close may be called concurrently with it.
type Conn interface {
	ReadFrame() (Frame, error)
	WriteFrame(Frame) error
	Close() error
}

// Dialer opens a live channel for a user.
type Dialer interface {
	Dial(ctx context.Context, userID string) (Conn, error)
}

// WSDialer opens live channels as WebSockets against the backend base URL.
type WSDialer struct {
	BaseURL string
	Path    string
	Dialer  *websocket.Dialer
}

// NewWSDialer returns a dialer for baseURL (http, https, ws or wss).
func NewWSDialer(baseURL string) *WSDialer {
	return &WSDialer{
		BaseURL: baseURL,
		Path:    DefaultPath,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Endpoint builds the channel URL with the user id as connection metadata.
func (d *WSDialer) Endpoint(userID string) (string, error) {
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	path := d.Path
	if path == "" {
		path = DefaultPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial implements Dialer.
func (d *WSDialer) Dial(ctx context.Context, userID string) (Conn, error) {
	endpoint, err := d.Endpoint(userID)
	if err != nil {
		return nil, err
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	c, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (http %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	c.SetReadLimit(maxMessageSize)
	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// MalformedFrameError is a message that arrived intact but is not a frame.
// The channel itself is still usable.
type MalformedFrameError struct {
	Size int
	Err  error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame (%d bytes): %v", e.Size, e.Err)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

func (c *wsConn) ReadFrame() (Frame, error) {
	var f Frame
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, &MalformedFrameError{Size: len(data), Err: err}
	}
	return f, nil
}

func (c *wsConn) WriteFrame(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

// IsClosed reports whether err is an orderly close of the channel.
func IsClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
