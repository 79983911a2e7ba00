package reporter

import (
	"context"
	"errors"

	"github.com/nerrad567/planter-core/internal/monitor"
)

// Multi publishes to several reporters in order. One failing outlet does
// not stop the others; all failures are joined.
type Multi struct {
	reporters []monitor.Reporter
}

// NewMulti combines reporters. Nil entries are skipped.
func NewMulti(reporters ...monitor.Reporter) *Multi {
	m := &Multi{}
	for _, r := range reporters {
		if r != nil {
			m.reporters = append(m.reporters, r)
		}
	}
	return m
}

// Len returns the number of combined reporters.
func (m *Multi) Len() int { return len(m.reporters) }

// Publish implements monitor.Reporter.
func (m *Multi) Publish(ctx context.Context, s monitor.StatusSnapshot) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Publish(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
