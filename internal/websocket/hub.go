package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event notifies connected clients that catalog data changed so they can
// refresh stale views. Payload carries the changed entity when it is cheap
// to ship inline (a single price row) and is omitted for deletions.
type Event struct {
	Type    string `json:"type"`
	ID      int64  `json:"id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Catalog change event types.
const (
	EventProductCreated = "product_created"
	EventProductUpdated = "product_updated"
	EventProductDeleted = "product_deleted"
	EventMarketCreated  = "market_created"
	EventMarketUpdated  = "market_updated"
	EventMarketRemoved  = "market_removed"
	EventPriceUpdated   = "price_updated"
)

// Hub maintains the set of active WebSocket clients and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to all connected clients. Clients with a full
// send buffer miss the event; they resync on reconnect.
func (h *Hub) Broadcast(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
