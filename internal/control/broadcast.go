// Package control is the optional websocket remote: it broadcasts session
// notifications and turns client commands into calls on the scheduler.
package control

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sk2233/spineview/internal/logging"
)

const sendBuffer = 64

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Hub fans notifications out to every connected client. It implements
// character.Notifier and is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	log     *logging.Logger
}

func NewHub(log *logging.Logger) *Hub {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Hub{
		clients: make(map[*client]bool),
		log:     log.WithComponent("control"),
	}
}

func (h *Hub) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func (h *Hub) RemoveClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) Animations(id string, names []string) {
	h.broadcast(WSMessage{Type: MsgAnimations, Payload: AnimationsPayload{Session: id, Names: names}})
}

func (h *Hub) Error(id string, msg string) {
	h.broadcast(WSMessage{Type: MsgError, Payload: ErrorPayload{Session: id, Message: msg}})
}

func (h *Hub) Debug(id string, line string) {
	h.broadcast(WSMessage{Type: MsgDebug, Payload: DebugPayload{Session: id, Line: line}})
}

func (h *Hub) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to encode message", "type", string(msg.Type), "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !h.trySend(c, data) {
			h.log.Warn("slow client disconnected")
			h.RemoveClient(c)
		}
	}
}

// sendTo queues msg for a single client.
func (h *Hub) sendTo(c *client, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if !h.trySend(c, data) {
		h.RemoveClient(c)
	}
}

// trySend reports false when the client buffer is full. A client removed
// concurrently counts as sent.
func (h *Hub) trySend(c *client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}
