package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/status"
	"go.uber.org/zap"
)

func TestEndpoint(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"http://localhost:5000", "ws://localhost:5000/ws?userId=a+b", false},
		{"https://api.example.com/", "wss://api.example.com/ws?userId=a+b", false},
		{"https://api.example.com/v1", "wss://api.example.com/v1/ws?userId=a+b", false},
		{"ws://host", "ws://host/ws?userId=a+b", false},
		{"ftp://host", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := NewWSDialer(tt.base).Endpoint("a b")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Endpoint() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Endpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWSDialerRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotUser := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		gotUser <- r.URL.Query().Get("userId")
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		var f Frame
		if err := c.ReadJSON(&f); err != nil {
			return
		}
		// Echo the frame back under the presence event name.
		f.Event = EventOnlineUsers
		_ = c.WriteJSON(f)
		_, _, _ = c.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := NewWSDialer(srv.URL).Dial(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if u := <-gotUser; u != "a" {
		t.Errorf("userId query = %q, want a", u)
	}

	out, _ := NewFrame(EventUserConnected, UserRef{UserID: "a"})
	if err := conn.WriteFrame(out); err != nil {
		t.Fatal(err)
	}
	in, err := conn.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if in.Event != EventOnlineUsers {
		t.Errorf("event = %q, want %q", in.Event, EventOnlineUsers)
	}
	var ref UserRef
	if err := in.Decode(&ref); err != nil || ref.UserID != "a" {
		t.Errorf("payload = %+v, %v", ref, err)
	}
}

func TestWSDialerRejected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := NewWSDialer(srv.URL).Dial(context.Background(), "a"); err == nil {
		t.Fatal("Dial() against a non-websocket endpoint should fail")
	}
}

func TestMalformedFrameKeepsChannel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_ = c.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"event":"getOnlineUsers","data":["a","b"]}`))
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := bus.New()
	m := NewManager(NewWSDialer(srv.URL), status.NewMachine(b), b, zap.NewNop())
	defer m.Disconnect()
	got := make(chan Frame, 4)
	m.RegisterHandler(func(f Frame) { got <- f })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Connect(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-got:
		if f.Event != EventOnlineUsers {
			t.Errorf("event = %q, want %q", f.Event, EventOnlineUsers)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("frame after a malformed one was never delivered")
	}
	if !m.Connected() || m.State() != status.Online {
		t.Errorf("connected = %v, state = %s; want connected and ONLINE", m.Connected(), m.State())
	}
}
