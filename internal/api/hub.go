package api

import (
	"context"
	"sync"

	"github.com/nerrad567/planter-core/internal/infrastructure/config"
	"github.com/nerrad567/planter-core/internal/infrastructure/logging"
)

// Hub tracks connected WebSocket clients and fans channel events out to
// the ones subscribed. It satisfies reporter.Broadcaster.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub creates a WebSocket hub. Start it with Run.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
}

// Register adds a client. Clients arriving after Run has returned are
// closed straight away.
func (h *Hub) Register(c *wsClient) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.shutdown()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client. It is safe to call more than once; only the
// call that removes the client closes its queue.
func (h *Hub) Unregister(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.shutdown()
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// Broadcast queues an event for every client subscribed to channel. Slow
// clients drop the event rather than block the caller, which is usually the
// monitoring loop.
func (h *Hub) Broadcast(channel string, payload any) {
	targets := h.subscribers(channel)
	if len(targets) == 0 {
		return
	}

	data, err := encode(WSMessage{Type: WSTypeEvent, Channel: channel, Payload: payload})
	if err != nil {
		h.logger.Error("failed to encode broadcast", "channel", channel, "error", err)
		return
	}
	dropped := 0
	for _, c := range targets {
		if !c.enqueue(data) {
			dropped++
		}
	}
	h.logger.Debug("broadcast sent", "channel", channel, "recipients", len(targets), "dropped", dropped)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// subscribers snapshots the clients on channel; the hub lock is never held
// while a client lock is taken.
func (h *Hub) subscribers(channel string) []*wsClient {
	h.mu.RLock()
	all := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	out := all[:0]
	for _, c := range all {
		if c.subscribed(channel) {
			out = append(out, c)
		}
	}
	return out
}
