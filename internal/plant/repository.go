package plant

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository persists plants keyed by position.
type Repository interface {
	// List returns every plant ordered by position.
	List(ctx context.Context) ([]Plant, error)

	// Create inserts a plant. Returns ErrPositionTaken if the position is used.
	Create(ctx context.Context, p *Plant) error

	// Update replaces the stored plant at p.Position.
	// Returns ErrPlantNotFound if there is none.
	Update(ctx context.Context, p *Plant) error
}

// SQLiteRepository implements Repository on the plants table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Plant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT position, name, water_amount_ml, watering_frequency_days, last_watered, active
		FROM plants
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying plants: %w", err)
	}
	defer rows.Close()

	var plants []Plant
	for rows.Next() {
		var (
			p      Plant
			last   sql.NullString
			active int
		)
		if err := rows.Scan(&p.Position, &p.Name, &p.WaterAmountML, &p.WateringFrequencyDays, &last, &active); err != nil {
			return nil, fmt.Errorf("scanning plant: %w", err)
		}
		if last.Valid {
			t, err := time.Parse(timeLayout, last.String)
			if err != nil {
				return nil, fmt.Errorf("parsing last_watered for position %d: %w", p.Position, err)
			}
			p.LastWatered = &t
		}
		p.Active = active != 0
		plants = append(plants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plants: %w", err)
	}
	return plants, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, p *Plant) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plants (position, name, water_amount_ml, watering_frequency_days,
			last_watered, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Position, p.Name, p.WaterAmountML, p.WateringFrequencyDays,
		nullableTime(p.LastWatered), boolToInt(p.Active), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrPositionTaken
		}
		return fmt.Errorf("inserting plant: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, p *Plant) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE plants
		SET name = ?, water_amount_ml = ?, watering_frequency_days = ?,
			last_watered = ?, active = ?, updated_at = ?
		WHERE position = ?`,
		p.Name, p.WaterAmountML, p.WateringFrequencyDays,
		nullableTime(p.LastWatered), boolToInt(p.Active),
		time.Now().UTC().Format(time.RFC3339), p.Position,
	)
	if err != nil {
		return fmt.Errorf("updating plant: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrPlantNotFound
	}
	return nil
}

// MemoryRepository keeps plants in memory. Used when no database is configured.
type MemoryRepository struct {
	mu     sync.Mutex
	plants map[int]Plant
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{plants: make(map[int]Plant)}
}

func (m *MemoryRepository) List(context.Context) ([]Plant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Plant, 0, len(m.plants))
	for _, p := range m.plants {
		out = append(out, *p.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *MemoryRepository) Create(_ context.Context, p *Plant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plants[p.Position]; ok {
		return ErrPositionTaken
	}
	m.plants[p.Position] = *p.DeepCopy()
	return nil
}

func (m *MemoryRepository) Update(_ context.Context, p *Plant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plants[p.Position]; !ok {
		return ErrPlantNotFound
	}
	m.plants[p.Position] = *p.DeepCopy()
	return nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
