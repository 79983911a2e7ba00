package plant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventRecorder stores watering attempts.
type EventRecorder interface {
	Record(ctx context.Context, e *WateringEvent) error
}

// EventRepository stores and lists watering attempts.
type EventRepository interface {
	EventRecorder

	// List returns the most recent events, newest first. A position of -1
	// matches every plant.
	List(ctx context.Context, position, limit int) ([]WateringEvent, error)
}

// SQLiteEventRepository implements EventRepository on watering_events.
type SQLiteEventRepository struct {
	db *sql.DB
}

// NewSQLiteEventRepository creates an event repository over an open, migrated database.
func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

// Record inserts e, filling in ID and OccurredAt when empty.
func (r *SQLiteEventRepository) Record(ctx context.Context, e *WateringEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watering_events (id, plant_name, position, pump_id, water_amount_ml,
			duration_ms, reason, success, error, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PlantName, e.Position, e.PumpID, e.WaterAmountML,
		e.DurationMS, string(e.Trigger), boolToInt(e.Success), errText,
		e.OccurredAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting watering event: %w", err)
	}
	return nil
}

// List returns up to limit events, newest first.
func (r *SQLiteEventRepository) List(ctx context.Context, position, limit int) ([]WateringEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, plant_name, position, pump_id, water_amount_ml, duration_ms,
			reason, success, error, occurred_at
		FROM watering_events`
	args := []any{}
	if position >= 0 {
		query += ` WHERE position = ?`
		args = append(args, position)
	}
	query += ` ORDER BY occurred_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying watering events: %w", err)
	}
	defer rows.Close()

	var events []WateringEvent
	for rows.Next() {
		var (
			e        WateringEvent
			trigger  string
			success  int
			errText  sql.NullString
			occurred string
		)
		if err := rows.Scan(&e.ID, &e.PlantName, &e.Position, &e.PumpID, &e.WaterAmountML,
			&e.DurationMS, &trigger, &success, &errText, &occurred); err != nil {
			return nil, fmt.Errorf("scanning watering event: %w", err)
		}
		e.Trigger = Trigger(trigger)
		e.Success = success != 0
		e.Error = errText.String
		if e.OccurredAt, err = time.Parse(timeLayout, occurred); err != nil {
			return nil, fmt.Errorf("parsing occurred_at: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating watering events: %w", err)
	}
	return events, nil
}
