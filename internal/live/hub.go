// Package live delivers events to connected users over websockets.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 512
)

// Envelope is the frame written to websocket clients.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex // serializes writes
}

func (c *client) write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Hub tracks websocket connections per user. A user may hold several.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[string]*client
	closed   bool
	upgrader websocket.Upgrader
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and keeps the connection registered for userID
// until the client disconnects. Inbound messages are ignored.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}

	c := &client{id: uuid.NewString(), userID: userID, conn: conn}
	if !h.register(c) {
		_ = conn.Close()
		return errors.New("hub is closed")
	}
	defer h.unregister(c)

	slog.Debug("websocket connected", "user_id", userID, "client_id", c.id)

	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			slog.Debug("websocket disconnected", "user_id", userID, "client_id", c.id, "error", err)
			return nil
		}
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[string]*client)
		h.clients[c.userID] = conns
	}
	conns[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if conns, ok := h.clients[c.userID]; ok {
		delete(conns, c.id)
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()

	_ = c.conn.Close()
}

// Connections returns the number of open connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Push writes the event to every connection of userID. A user with no
// connections is not an error. Connections that fail to write are dropped.
func (h *Hub) Push(ctx context.Context, userID string, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[userID]))
	for _, c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var errs []error
	for _, c := range targets {
		if err := c.write(frame); err != nil {
			errs = append(errs, fmt.Errorf("client %s: %w", c.id, err))
			h.unregister(c)
		}
	}
	return errors.Join(errs...)
}

// Close sends a close frame to every connection and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, conns := range h.clients {
		for _, c := range conns {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[string]*client)
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range all {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.mu.Unlock()
		_ = c.conn.Close()
	}
}
