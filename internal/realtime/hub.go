// Package realtime pushes portfolio updates to connected WebSocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"estatetoken/internal/events"
	"estatetoken/internal/logger"

	"go.uber.org/zap"
)

// SubscriberName identifies the hub on the event bus.
const SubscriberName = "realtime.candles"

const sendBufferSize = 64

// Client is one WebSocket connection owned by a user.
type Client struct {
	UserID string
	Send   chan []byte
	hub    *Hub
	mu     sync.Mutex
	closed bool
}

// NewClient creates a client with a buffered outbound queue.
func NewClient(userID string) *Client {
	return &Client{UserID: userID, Send: make(chan []byte, sendBufferSize)}
}

// Close unregisters the client and closes its queue. It is safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.hub != nil {
		c.hub.unregister(c)
	}
	close(c.Send)
}

func (c *Client) offer(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub tracks connected clients by user.
type Hub struct {
	mu     sync.RWMutex
	byUser map[string]map[*Client]struct{}
	count  int
	log    *zap.SugaredLogger
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{byUser: make(map[string]map[*Client]struct{}), log: logger.Named("realtime")}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	if _, ok := h.byUser[c.UserID][c]; !ok {
		h.byUser[c.UserID][c] = struct{}{}
		h.count++
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.byUser[c.UserID]
	if _, ok := m[c]; !ok {
		return
	}
	delete(m, c)
	h.count--
	if len(m) == 0 {
		delete(h.byUser, c.UserID)
	}
}

// SendToUser delivers payload to every connection of userID and returns how
// many accepted it. Slow clients with a full queue are skipped.
func (h *Hub) SendToUser(userID string, payload interface{}) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if c.offer(data) {
			delivered++
		} else {
			h.log.Warnw("dropped message for slow client", "user_id", userID)
		}
	}
	return delivered, nil
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Subscribe subscribes the hub to candle updates on bus.
func (h *Hub) Subscribe(bus events.Subscriber) {
	bus.Subscribe(events.TopicPortfolioCandleUpdated, SubscriberName, events.On(h.onCandleUpdated))
}

func (h *Hub) onCandleUpdated(_ context.Context, e events.PortfolioCandleUpdated) error {
	_, err := h.SendToUser(e.UserID, e)
	return err
}
