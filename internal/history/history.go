// Package history keeps the most recent sensor readings in memory.
//
// The buffer is bounded: once full, each Append drops the oldest reading.
// Readings are not persisted; long-term storage goes through the InfluxDB
// reporter.
package history

import (
	"sync"

	"github.com/nerrad567/planter-core/internal/hardware"
)

// DefaultCapacity is the number of readings retained when none is given.
const DefaultCapacity = 50

// Buffer is a fixed-capacity ring of readings. It is safe for concurrent use.
type Buffer struct {
	mu    sync.RWMutex
	items []hardware.Reading
	next  int
	full  bool
}

// New returns an empty buffer. A capacity below 1 uses DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Buffer{items: make([]hardware.Reading, capacity)}
}

// Append adds r, evicting the oldest reading when the buffer is full.
func (b *Buffer) Append(r hardware.Reading) {
	r = cloneReading(r)

	b.mu.Lock()
	b.items[b.next] = r
	b.next = (b.next + 1) % len(b.items)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

// Len returns the number of readings held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.len()
}

func (b *Buffer) len() int {
	if b.full {
		return len(b.items)
	}
	return b.next
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.items) }

// Snapshot returns the held readings, oldest first.
func (b *Buffer) Snapshot() []hardware.Reading {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := b.len()
	out := make([]hardware.Reading, 0, n)
	start := 0
	if b.full {
		start = b.next
	}
	for i := 0; i < n; i++ {
		out = append(out, cloneReading(b.items[(start+i)%len(b.items)]))
	}
	return out
}

// Recent returns up to n of the newest readings, oldest first.
func (b *Buffer) Recent(n int) []hardware.Reading {
	all := b.Snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Last returns the newest reading, if any.
func (b *Buffer) Last() (hardware.Reading, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.len() == 0 {
		return hardware.Reading{}, false
	}
	i := (b.next - 1 + len(b.items)) % len(b.items)
	return cloneReading(b.items[i]), true
}

func cloneReading(r hardware.Reading) hardware.Reading {
	if r.Faults != nil {
		r.Faults = append([]string(nil), r.Faults...)
	}
	return r
}
