package plant

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the ordered, thread-safe set of plants. It writes through to
// a Repository and serves reads from memory.
//
// Registry order is ascending position. Plants are never removed while the
// process runs; only last_watered and the active flag change.
//
// All returned plants are deep copies.
type Registry struct {
	repo   Repository
	mu     sync.RWMutex
	plants []*Plant // sorted by Position
	logger Logger
}

// NewRegistry creates an empty registry over repo. Call Load to populate it.
//
// Parameters:
//   - repo: Persistence for plants (SQLite or in-memory)
//
// Returns:
//   - *Registry: Empty registry with a no-op logger
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load replaces the in-memory set with the repository contents.
func (r *Registry) Load(ctx context.Context) error {
	stored, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading plants: %w", err)
	}

	plants := make([]*Plant, 0, len(stored))
	for i := range stored {
		plants = append(plants, stored[i].DeepCopy())
	}
	sort.Slice(plants, func(i, j int) bool { return plants[i].Position < plants[j].Position })

	r.mu.Lock()
	r.plants = plants
	r.mu.Unlock()

	r.logger.Info("plant registry loaded", "count", len(plants))
	return nil
}

// Seed adds defaults only when the registry is empty and returns how many
// plants were added.
func (r *Registry) Seed(ctx context.Context, defaults []Plant) (int, error) {
	if r.Count() > 0 {
		return 0, nil
	}
	for i := range defaults {
		if err := r.Add(ctx, defaults[i]); err != nil {
			return i, fmt.Errorf("seeding %q: %w", defaults[i].Name, err)
		}
	}
	if len(defaults) > 0 {
		r.logger.Info("plant registry seeded", "count", len(defaults))
	}
	return len(defaults), nil
}

// Add validates p and inserts it. Returns ErrPositionTaken if another plant
// already holds p.Position.
func (r *Registry) Add(ctx context.Context, p Plant) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, found := r.search(p.Position)
	if found {
		return fmt.Errorf("%w: %d", ErrPositionTaken, p.Position)
	}
	if err := r.repo.Create(ctx, &p); err != nil {
		return err
	}

	r.plants = append(r.plants, nil)
	copy(r.plants[i+1:], r.plants[i:])
	r.plants[i] = p.DeepCopy()
	return nil
}

// List returns every plant in registry order.
func (r *Registry) List() []Plant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Plant, 0, len(r.plants))
	for _, p := range r.plants {
		out = append(out, *p.DeepCopy())
	}
	return out
}

// Get returns the plant at position.
func (r *Registry) Get(position int) (Plant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, found := r.search(position)
	if !found {
		return Plant{}, fmt.Errorf("%w: position %d", ErrPlantNotFound, position)
	}
	return *r.plants[i].DeepCopy(), nil
}

// Positions returns the occupied positions in order.
func (r *Registry) Positions() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int, len(r.plants))
	for i, p := range r.plants {
		out[i] = p.Position
	}
	return out
}

// Count returns the number of plants.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plants)
}

// MarkWatered records a successful watering at t.
func (r *Registry) MarkWatered(ctx context.Context, position int, t time.Time) error {
	return r.update(ctx, position, func(p *Plant) {
		wt := t
		p.LastWatered = &wt
	})
}

// SetActive enables or disables automatic watering for a plant.
func (r *Registry) SetActive(ctx context.Context, position int, active bool) (Plant, error) {
	if err := r.update(ctx, position, func(p *Plant) { p.Active = active }); err != nil {
		return Plant{}, err
	}
	return r.Get(position)
}

// update applies fn to a copy, persists it, then swaps it in. A repository
// failure leaves the cached plant untouched.
func (r *Registry) update(ctx context.Context, position int, fn func(p *Plant)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, found := r.search(position)
	if !found {
		return fmt.Errorf("%w: position %d", ErrPlantNotFound, position)
	}

	next := r.plants[i].DeepCopy()
	fn(next)
	if err := r.repo.Update(ctx, next); err != nil {
		return fmt.Errorf("persisting plant %d: %w", position, err)
	}
	r.plants[i] = next
	return nil
}

// search returns the index of position, or where it would be inserted.
// Caller holds mu.
func (r *Registry) search(position int) (int, bool) {
	i := sort.Search(len(r.plants), func(i int) bool { return r.plants[i].Position >= position })
	return i, i < len(r.plants) && r.plants[i].Position == position
}
