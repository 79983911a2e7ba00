package reporter

import (
	"context"

	"github.com/nerrad567/planter-core/internal/monitor"
)

// WebSocket channels written by Hub.
const (
	ChannelStatusPublished  = "status.published"
	ChannelWateringFinished = "watering.finished"
)

// Broadcaster fans a payload out to WebSocket subscribers of a channel.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Hub pushes each published snapshot, and every new watering result, to
// WebSocket clients.
type Hub struct {
	b   Broadcaster
	cur cursor
}

// NewHub creates a WebSocket reporter.
func NewHub(b Broadcaster) *Hub { return &Hub{b: b} }

// Publish implements monitor.Reporter.
func (h *Hub) Publish(ctx context.Context, s monitor.StatusSnapshot) error {
	if err := ctx.Err(); err != nil {
		return wrap("websocket", err)
	}
	d := h.cur.next(s)
	for _, w := range d.waterings {
		h.b.Broadcast(ChannelWateringFinished, w)
	}
	h.b.Broadcast(ChannelStatusPublished, s)
	h.cur.commit(d)
	return nil
}
