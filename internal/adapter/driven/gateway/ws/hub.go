package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrSendBufferFull = errors.New("send buffer full")
)

// implements port.Gateway
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.ConnectionID]Client
	quit    chan struct{}
	once    sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[domain.ConnectionID]Client),
		quit:    make(chan struct{}),
	}
}

// Send queues frame for the connection without waiting for the write.
func (h *Hub) Send(ctx context.Context, id domain.ConnectionID, frame []byte) error {
	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()

	if !ok {
		return ErrClientNotFound
	}
	if !client.Enqueue(frame) {
		return ErrSendBufferFull
	}
	return nil
}

// Run blocks until Stop, then closes every client still registered.
func (h *Hub) Run() {
	<-h.quit

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
	log.Info().Msg("Hub stopped")
}

func (h *Hub) Register(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.quit:
		c.Close()
		return
	default:
	}
	h.clients[c.ID()] = c
	log.Debug().Str("connection_id", c.ID().String()).Msg("Client registered")
}

func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.ID()]; ok && cur == c {
		delete(h.clients, c.ID())
		c.Close()
		log.Debug().Str("connection_id", c.ID().String()).Msg("Client unregistered")
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Stop() {
	h.once.Do(func() { close(h.quit) })
}
