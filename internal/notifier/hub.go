// Package notifier broadcasts workspace update events to connected
// websocket clients so collaborators can render incremental results without
// polling.
package notifier

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"medsim-server/internal/model"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The HTTP layer already applies CORS policy; the websocket endpoint
	// mirrors it by accepting any origin the router let through.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub manages active websocket connections and fans events out to them.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub builds an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger.Named("notifier"),
		clients: make(map[*client]struct{}),
	}
}

// Publish broadcasts one workspace update to every connected client.
// A slow client's backlog is dropped rather than blocking the publisher.
func (h *Hub) Publish(event model.UpdateEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal update event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("Dropping update for slow websocket client")
		}
	}
}

// Handle upgrades one HTTP request to a websocket subscription.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("Websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writePump(c)
	go h.readPump(c)
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// readPump discards incoming frames; the feed is one-way. It exists to
// notice the peer closing the connection.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("Websocket write failed", zap.Error(err))
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
