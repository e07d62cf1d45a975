// Package ws is the persistent-channel side of the server: one
// websocket per logged-in user, keyed by username, with direct
// point-to-point message relay.
package ws

import (
	"log"
	"sync"

	"github.com/neverwash/nwchat/internal/server/storage"
)

// Hub tracks which users currently have an open channel.
type Hub struct {
	Store *storage.Store

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(store *storage.Store) *Hub {
	return &Hub{
		Store:   store,
		clients: make(map[string]*Client),
	}
}

// Register binds a client to its username. A user gets at most one open
// channel: an existing one is closed and replaced.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.Username]
	h.clients[c.Username] = c
	h.mu.Unlock()

	if old != nil && old != c {
		old.CloseSend()
		log.Printf("Replaced existing channel for %s", old.Username)
	}
}

// Unregister drops the client if it is still the one bound to its
// username.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.Username] == c {
		delete(h.clients, c.Username)
	}
	h.mu.Unlock()
}

// DeliverTo queues a frame for the named user. Returns false when the
// user has no open channel; the message is then available via history
// only.
func (h *Hub) DeliverTo(username string, frame []byte) bool {
	h.mu.RLock()
	c := h.clients[username]
	h.mu.RUnlock()
	if c == nil {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		// Slow consumer; drop the channel rather than block the relay.
		h.Unregister(c)
		c.CloseSend()
		return false
	}
}
