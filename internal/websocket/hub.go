package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Entity names carried in Message.Entity.
const (
	EntityChore     = "chore"
	EntityPrivilege = "privilege"
	EntityPoints    = "points"
	EntityConfig    = "config"
	EntitySummary   = "summary"
)

// Message is a change notification pushed to every connected dashboard.
// Assignee and Slug identify the runtime entity when there is one.
type Message struct {
	Type     string         `json:"type"`
	Entity   string         `json:"entity"`
	Action   string         `json:"action"`
	Assignee string         `json:"assignee,omitempty"`
	Slug     string         `json:"slug,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// NewMessage builds a Message whose Type is "<entity>_<action>".
func NewMessage(entity, action, assignee, slug string, extra map[string]any) Message {
	return Message{
		Type:     entity + "_" + action,
		Entity:   entity,
		Action:   action,
		Assignee: assignee,
		Slug:     slug,
		Extra:    extra,
	}
}

// Hub fans messages out to connected clients. Slow clients lose messages
// instead of blocking the sender.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "client", c.id, "clients", n)
}

// Unregister removes c and closes its send channel. Repeated calls are
// harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("websocket client disconnected", "client", c.id, "clients", n)
	}
}

func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
			h.logger.Warn("websocket client buffer full, dropping message", "client", c.id, "type", msg.Type)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped reports how many deliveries were skipped because a client was
// too slow.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
