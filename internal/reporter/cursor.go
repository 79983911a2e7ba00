package reporter

import (
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/planter-core/internal/monitor"
)

// cursor tracks what an outlet has already sent so that a snapshot
// republished after a manual watering does not repeat the reading, and a
// watering result carried over several cycles goes out once.
type cursor struct {
	mu        sync.Mutex
	cycle     uint64
	wateredAt time.Time
}

type delta struct {
	reading   bool
	cycle     uint64
	waterings []monitor.WateringResult
	wateredAt time.Time
}

func (c *cursor) next(s monitor.StatusSnapshot) delta {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := delta{cycle: c.cycle, wateredAt: c.wateredAt}
	if s.LastReading != nil && s.Cycle > c.cycle {
		d.reading = true
		d.cycle = s.Cycle
	}
	for _, w := range s.LastWatering {
		if w.At.After(c.wateredAt) {
			d.waterings = append(d.waterings, w)
			if w.At.After(d.wateredAt) {
				d.wateredAt = w.At
			}
		}
	}
	sort.SliceStable(d.waterings, func(i, j int) bool { return d.waterings[i].At.Before(d.waterings[j].At) })
	return d
}

func (c *cursor) commit(d delta) {
	c.sentReading(d.cycle)
	c.sentWatering(d.wateredAt)
}

// sentReading marks the reading of cycle as delivered.
func (c *cursor) sentReading(cycle uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cycle > c.cycle {
		c.cycle = cycle
	}
}

// sentWatering marks every watering up to at as delivered. Waterings in a
// delta are ordered by time, so committing each in turn never skips one.
func (c *cursor) sentWatering(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if at.After(c.wateredAt) {
		c.wateredAt = at
	}
}
