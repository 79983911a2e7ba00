package plant

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/planter-core/internal/infrastructure/config"
)

// Limits on plant fields.
const (
	MaxNameLength = 100
	MinFrequency  = 1
)

// Plant is one potted plant served by the planter.
type Plant struct {
	Name                  string     `json:"name"`
	Position              int        `json:"position"`
	WaterAmountML         float64    `json:"water_amount_ml"`
	WateringFrequencyDays int        `json:"watering_frequency_days"`
	LastWatered           *time.Time `json:"last_watered,omitempty"`
	Active                bool       `json:"active"`
}

// PumpID returns the pump that serves this plant. It is derived, never stored.
func (p Plant) PumpID() int {
	return PumpFor(p.Position)
}

// PumpFor maps a position to pump 1 or 2: even positions use pump 1, odd use pump 2.
func PumpFor(position int) int {
	return position%2 + 1
}

// DeepCopy returns a copy that shares no pointers with p.
func (p *Plant) DeepCopy() *Plant {
	if p == nil {
		return nil
	}
	cp := *p
	if p.LastWatered != nil {
		t := *p.LastWatered
		cp.LastWatered = &t
	}
	return &cp
}

// Validate checks field constraints. Position uniqueness is enforced by the registry.
func (p *Plant) Validate() error {
	var errs []string

	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		errs = append(errs, "name is required")
	case len(name) > MaxNameLength:
		errs = append(errs, fmt.Sprintf("name exceeds %d characters", MaxNameLength))
	}
	if p.Position < 0 {
		errs = append(errs, "position must not be negative")
	}
	if p.WaterAmountML <= 0 {
		errs = append(errs, "water_amount_ml must be positive")
	}
	if p.WateringFrequencyDays < MinFrequency {
		errs = append(errs, fmt.Sprintf("watering_frequency_days must be at least %d", MinFrequency))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPlant, strings.Join(errs, "; "))
	}
	return nil
}

// FromConfig converts the configured plant list into registry seeds.
func FromConfig(cfgs []config.PlantConfig) []Plant {
	out := make([]Plant, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, Plant{
			Name:                  c.Name,
			Position:              c.Position,
			WaterAmountML:         c.WaterAmountML,
			WateringFrequencyDays: c.WateringFrequencyDays,
			Active:                c.IsActive(),
		})
	}
	return out
}

// Trigger records why a watering happened.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerMoisture Trigger = "moisture"
	TriggerManual   Trigger = "manual"
)

// WateringEvent is one pump activation attempt for a plant.
type WateringEvent struct {
	ID            string    `json:"id"`
	PlantName     string    `json:"plant_name"`
	Position      int       `json:"position"`
	PumpID        int       `json:"pump_id"`
	WaterAmountML float64   `json:"water_amount_ml"`
	DurationMS    int64     `json:"duration_ms"`
	Trigger       Trigger   `json:"trigger"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
