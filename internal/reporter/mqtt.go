package reporter

import (
	"context"

	"github.com/nerrad567/planter-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/planter-core/internal/monitor"
)

// Publisher is the part of the MQTT client the reporter needs.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTT publishes the snapshot as a retained status message, each new
// reading on the reading topic and each new watering as an event. Parts
// are marked sent one at a time, so a retry resumes after the last
// delivered part.
type MQTT struct {
	pub    Publisher
	topics mqtt.Topics
	cur    cursor
}

// NewMQTT creates an MQTT reporter.
func NewMQTT(pub Publisher, topics mqtt.Topics) *MQTT {
	return &MQTT{pub: pub, topics: topics}
}

// Publish implements monitor.Reporter.
func (m *MQTT) Publish(ctx context.Context, s monitor.StatusSnapshot) error {
	if err := ctx.Err(); err != nil {
		return wrap("mqtt", err)
	}

	d := m.cur.next(s)
	if d.reading {
		if err := m.pub.PublishJSON(m.topics.Reading(), s.LastReading, false); err != nil {
			return wrap("mqtt", err)
		}
		m.cur.sentReading(d.cycle)
	}
	for _, w := range d.waterings {
		if err := m.pub.PublishJSON(m.topics.WateringEvent(), w, false); err != nil {
			return wrap("mqtt", err)
		}
		m.cur.sentWatering(w.At)
	}
	if err := m.pub.PublishJSON(m.topics.Status(), s, true); err != nil {
		return wrap("mqtt", err)
	}
	return nil
}
