package mcp

import (
	"sync"

	"github.com/google/uuid"
)

// Hub fans server-initiated messages out to SSE subscribers. Broadcast never
// blocks; a subscriber that cannot keep up loses messages rather than
// stalling the others.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan []byte
	buffer      int
}

// NewHub creates a hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subscribers: make(map[string]chan []byte),
		buffer:      buffer,
	}
}

// Subscribe registers a new subscriber and returns its session id and
// channel. The channel is closed on Unsubscribe.
func (h *Hub) Subscribe() (string, <-chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, h.buffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
}

// Broadcast delivers a message to every subscriber without blocking.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Len returns the current subscriber count.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
