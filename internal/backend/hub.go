package backend

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/socialsync/internal/live"
	"github.com/matheus3301/socialsync/internal/logging"
	"github.com/matheus3301/socialsync/internal/model"
	"github.com/matheus3301/socialsync/internal/store"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one live channel connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Guarded by hub.mu.
	userID string
	rooms  map[string]struct{}
	closed bool
}

// Hub tracks connected users, routes chat messages between them and fans
// notifications out to per-user rooms.
type Hub struct {
	db     *store.DB
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	online  map[string]int
	rooms   map[string]map[*client]struct{}
}

// NewHub creates a hub persisting messages to db.
func NewHub(db *store.DB, logger *zap.Logger) *Hub {
	return &Hub{
		db:      db,
		logger:  logging.OrNop(logger),
		clients: make(map[*client]struct{}),
		online:  make(map[string]int),
		rooms:   make(map[string]map[*client]struct{}),
	}
}

// ServeWS upgrades the request and serves the connection until it closes.
// The userId query parameter identifies the user up front.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if uid := r.URL.Query().Get("userId"); uid != "" {
		h.identify(c, uid)
	}
	go c.writePump()
	c.readPump()
}

// Online returns the connected user ids in lexical order.
func (h *Hub) Online() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.onlineLocked()
}

func (h *Hub) onlineLocked() []string {
	ids := make([]string, 0, len(h.online))
	for id := range h.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomSize returns how many connections joined room.
func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (h *Hub) identify(c *client, uid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed || c.userID == uid {
		return
	}
	if c.userID != "" {
		h.leaveLocked(c)
	}
	c.userID = uid
	h.online[uid]++
	if h.online[uid] == 1 {
		h.broadcastLocked(live.EventUserOnline, live.UserRef{UserID: uid})
	}
	h.broadcastLocked(live.EventOnlineUsers, h.onlineLocked())
	h.logger.Info("user connected", zap.String("user_id", uid), zap.Int("online", len(h.online)))
}

// leaveLocked drops c's identity and announces the user offline when it was
// their last connection.
func (h *Hub) leaveLocked(c *client) {
	uid := c.userID
	c.userID = ""
	h.online[uid]--
	if h.online[uid] > 0 {
		return
	}
	delete(h.online, uid)
	h.broadcastLocked(live.EventUserOffline, live.UserRef{UserID: uid})
	h.broadcastLocked(live.EventOnlineUsers, h.onlineLocked())
	h.logger.Info("user disconnected", zap.String("user_id", uid), zap.Int("online", len(h.online)))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	delete(h.clients, c)
	for room := range c.rooms {
		delete(h.rooms[room], c)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	if c.userID != "" {
		h.leaveLocked(c)
	}
	close(c.send)
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Deliver sends a stored message to every connection of its sender and
// receiver.
func (h *Hub) Deliver(m model.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.encode(live.EventReceiveMessage, m)
	if !ok {
		return
	}
	for c := range h.clients {
		if c.userID != "" && (c.userID == m.SenderID || c.userID == m.ReceiverID) {
			h.queueLocked(c, data)
		}
	}
}

// Notify pushes n to the notification room of its user.
func (h *Hub) Notify(n model.Notification) {
	h.toRoom(n.UserID, live.EventNewNotification, n)
}

// NotifyRead tells the notification room of uid that everything was read.
func (h *Hub) NotifyRead(uid string) {
	h.toRoom(uid, live.EventNotificationsMarkedRead, live.UserRef{UserID: uid})
}

func (h *Hub) toRoom(room, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	for c := range h.rooms[room] {
		h.queueLocked(c, data)
	}
}

func (h *Hub) broadcastLocked(event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	for c := range h.clients {
		h.queueLocked(c, data)
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	f, err := live.NewFrame(event, payload)
	if err != nil {
		h.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return data, true
}

// queueLocked never blocks; a client that cannot keep up misses the frame.
func (h *Hub) queueLocked(c *client, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Warn("client send buffer full, frame dropped", zap.String("user_id", c.userID))
	}
}

func (h *Hub) handleFrame(c *client, f live.Frame) {
	switch f.Event {
	case live.EventUserConnected:
		uid, err := live.ParseUserRef(f.Data)
		if err != nil || uid == "" {
			h.logger.Debug("user_connected without id", zap.Error(err))
			return
		}
		h.identify(c, uid)
	case live.EventJoinUser:
		uid, err := live.ParseUserRef(f.Data)
		if err != nil || uid == "" {
			return
		}
		h.join(c, uid)
	case live.EventSendMessage:
		h.handleSend(c, f)
	default:
		h.logger.Debug("unknown client event", zap.String("event", f.Event))
	}
}

func (h *Hub) handleSend(c *client, f live.Frame) {
	var out model.OutgoingMessage
	if err := f.Decode(&out); err != nil {
		h.logger.Warn("bad send_message", zap.Error(err))
		return
	}
	h.mu.Lock()
	self := c.userID
	h.mu.Unlock()
	if self == "" || out.SenderID != self || out.ReceiverID == "" {
		h.logger.Warn("send_message rejected", zap.String("user_id", self), zap.String("sender_id", out.SenderID))
		return
	}
	msg := model.Message{
		SenderID:   out.SenderID,
		ReceiverID: out.ReceiverID,
		Text:       out.Text,
		Image:      out.Image,
		CreatedAt:  out.CreatedAt,
	}
	if err := h.db.InsertMessage(&msg); err != nil {
		h.logger.Error("store message", zap.Error(err))
		return
	}
	h.Deliver(msg)
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var f live.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("read frame", zap.Error(err))
			}
			var syntax *json.SyntaxError
			if errors.As(err, &syntax) {
				continue
			}
			return
		}
		c.hub.handleFrame(c, f)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
