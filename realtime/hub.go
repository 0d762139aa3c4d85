package realtime

import (
	"encoding/json"
	"log"
	"sync"
)

// Frame is the wire envelope for every socket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ack_id,omitempty"`
}

// outbound is marshalled once per Emit and shared by every subscriber.
type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

func RoomChannel(roomID string) string     { return "room:" + roomID }
func UserChannel(userID string) string     { return "user:" + userID }
func ThreadChannel(threadID string) string { return "thread:" + threadID }
func TicketChannel(ticketID string) string { return "ticket:" + ticketID }

// Hub tracks which clients are subscribed to which channel.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
	clients  map[*Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]map[string]struct{}),
	}
}

func (h *Hub) Subscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}

	joined, ok := h.clients[c]
	if !ok {
		joined = make(map[string]struct{})
		h.clients[c] = joined
	}
	joined[channel] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, channel)
}

// UnsubscribeAll drops c from every channel, e.g. on disconnect.
func (h *Hub) UnsubscribeAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range h.clients[c] {
		h.removeLocked(c, channel)
	}
	delete(h.clients, c)
}

func (h *Hub) removeLocked(c *Client, channel string) {
	if subs, ok := h.channels[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	if joined, ok := h.clients[c]; ok {
		delete(joined, channel)
	}
}

// Emit sends event to every subscriber of channel. Delivery is best-effort:
// a client whose buffer is full is disconnected rather than blocking the caller.
func (h *Hub) Emit(channel, event string, data interface{}) {
	payload, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		log.Printf("[Socket] failed to marshal %s for %s: %v", event, channel, err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(payload) {
			log.Printf("[Socket] client %s too slow, dropping", c.ID)
			h.UnsubscribeAll(c)
			c.Close()
		}
	}
}

func (h *Hub) EmitToRoom(roomID, event string, data interface{}) {
	h.Emit(RoomChannel(roomID), event, data)
}

func (h *Hub) EmitToUser(userID, event string, data interface{}) {
	h.Emit(UserChannel(userID), event, data)
}

func (h *Hub) ChannelSize(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// IsSubscribed reports whether c currently listens on channel.
func (h *Hub) IsSubscribed(c *Client, channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[c][channel]
	return ok
}
