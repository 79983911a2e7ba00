package monitor

import (
	"context"
	"time"

	"github.com/nerrad567/planter-core/internal/hardware"
	"github.com/nerrad567/planter-core/internal/scheduler"
	"github.com/nerrad567/planter-core/internal/validation"
)

// State is the monitoring state.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// PlantStatus is one plant as seen by the last cycle.
type PlantStatus struct {
	Name        string             `json:"name"`
	Position    int                `json:"position"`
	PumpID      int                `json:"pump_id"`
	Active      bool               `json:"active"`
	LastWatered *time.Time         `json:"last_watered,omitempty"`
	NeedsWater  bool               `json:"needs_water"`
	Validation  *validation.Result `json:"validation,omitempty"`
}

// WateringResult summarises one watering attempt for the snapshot.
type WateringResult struct {
	Plant      string    `json:"plant"`
	Position   int       `json:"position"`
	PumpID     int       `json:"pump_id"`
	Trigger    string    `json:"trigger"`
	DurationMS int64     `json:"duration_ms"`
	WaterML    float64   `json:"water_ml"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// StatusSnapshot is an immutable point-in-time view of the appliance.
// Published snapshots are shared between goroutines and must not be
// modified.
type StatusSnapshot struct {
	Timestamp          time.Time            `json:"timestamp"`
	Site               string               `json:"site"`
	Mode               hardware.Mode        `json:"mode"`
	State              State                `json:"state"`
	Cycle              uint64               `json:"cycle"`
	LastReading        *hardware.Reading    `json:"last_reading,omitempty"`
	WaterTankPct       float64              `json:"water_tank_pct"`
	Validation         *validation.Result   `json:"validation,omitempty"`
	PlantsNeedingWater []string             `json:"plants_needing_water"`
	Plants             []PlantStatus        `json:"plants"`
	Pumps              scheduler.PumpStatus `json:"pumps"`
	Indicator          hardware.Indicator   `json:"indicator"`
	LastWatering       []WateringResult     `json:"last_watering,omitempty"`
	HistoryCount       int                  `json:"history_count"`
	LastPublishError   string               `json:"last_publish_error,omitempty"`
}

// Reporter pushes snapshots out of the appliance. Failures are logged and
// shown in the next snapshot; they never stop the loop.
type Reporter interface {
	Publish(ctx context.Context, s StatusSnapshot) error
}

type noopReporter struct{}

func (noopReporter) Publish(context.Context, StatusSnapshot) error { return nil }

// Recorder receives loop metrics.
type Recorder interface {
	CycleCompleted(d time.Duration, r hardware.Reading)
	Watered(o scheduler.Outcome)
	PumpChanged(s scheduler.PumpStatus)
	PublishFailed()
}

type noopRecorder struct{}

func (noopRecorder) CycleCompleted(time.Duration, hardware.Reading) {}
func (noopRecorder) Watered(scheduler.Outcome)                      {}
func (noopRecorder) PumpChanged(scheduler.PumpStatus)               {}
func (noopRecorder) PublishFailed()                                 {}

// ResultOf summarises o.
func ResultOf(o scheduler.Outcome) WateringResult {
	r := WateringResult{
		Plant:      o.Plant.Name,
		Position:   o.Plant.Position,
		PumpID:     o.PumpID,
		Trigger:    string(o.Trigger),
		DurationMS: o.Duration.Milliseconds(),
		WaterML:    o.Plant.WaterAmountML,
		Success:    o.OK(),
		At:         o.At,
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}

func wateringResults(outcomes []scheduler.Outcome) []WateringResult {
	if len(outcomes) == 0 {
		return nil
	}
	out := make([]WateringResult, len(outcomes))
	for i, o := range outcomes {
		out[i] = ResultOf(o)
	}
	return out
}
