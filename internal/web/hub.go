package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/param-actuator/internal/logic"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// envelope is the wire format for websocket frames.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// ActionData is the payload of an "action" frame.
type ActionData struct {
	Kind            string  `json:"kind"`
	Param           string  `json:"param"`
	Value           float64 `json:"value"`
	Reason          string  `json:"reason,omitempty"`
	DebounceCleared bool    `json:"debounce_cleared,omitempty"`
	Operation       string  `json:"operation,omitempty"`
	Intensity       int     `json:"intensity,omitempty"`
	Duration        int     `json:"duration,omitempty"`
	CooldownMs      int64   `json:"cooldown_ms,omitempty"`
}

// Hub fans action frames out to connected websocket clients.
type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	mu      sync.Mutex
	clients map[*client]struct{}

	// snapshot, if set, produces the "state_init" payload for new clients.
	snapshot func() json.RawMessage
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, snapshot func() json.RawMessage) *Hub {
	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, 128),
		register:   make(chan *client, 64),
		unregister: make(chan *client, 64),
		clients:    make(map[*client]struct{}),
		snapshot:   snapshot,
	}
}

// Run processes hub events until ctx is canceled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.remove(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.remove(c, "slow_client")
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) remove(c *client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		_ = c.conn.Close()
		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

// BroadcastAction enqueues one routed action. It never blocks; if the queue
// is full the frame is dropped.
func (h *Hub) BroadcastAction(a logic.Action, at time.Time) {
	data := ActionData{
		Kind:            string(a.Kind),
		Param:           a.Param,
		Value:           a.Value,
		Reason:          a.Reason,
		DebounceCleared: a.DebounceCleared,
	}
	if a.Fire != nil {
		data.Operation = a.Fire.Operation
		data.Intensity = a.Fire.Intensity
		data.Duration = a.Fire.Duration
		data.CooldownMs = a.Fire.Cooldown.Milliseconds()
	}

	ts := at.UTC()
	msg, err := json.Marshal(envelope{Type: "action", Ts: &ts, Data: data})
	if err != nil {
		h.logger.Warn("ws marshal failed", "error", err)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws broadcast queue full, dropping message", "bytes", len(msg))
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the connection, registers the client and sends the
// current status as a "state_init" frame.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, 32),
		remoteAddr: r.RemoteAddr,
	}

	if h.snapshot != nil {
		now := time.Now().UTC()
		if msg, err := json.Marshal(envelope{Type: "state_init", Ts: &now, Data: h.snapshot()}); err == nil {
			c.send <- msg
		}
	}

	h.register <- c

	// The pumps outlive the request; the hub and connection errors end them.
	go c.writePump()
	go c.readPump()
}

type client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("write", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("ping", err)
				return
			}
		}
	}
}

// readPump discards inbound frames and unregisters the client on error.
func (c *client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("read", err)
			c.hub.unregister <- c
			return
		}
	}
}

func (c *client) logExit(op string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.hub.logger.Debug("ws client closed", "remote_addr", c.remoteAddr, "op", op, "code", ce.Code)
		return
	}
	c.hub.logger.Debug("ws pump exiting", "remote_addr", c.remoteAddr, "op", op, "error", err)
}
