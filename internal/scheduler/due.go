package scheduler

import (
	"time"

	"github.com/nerrad567/planter-core/internal/hardware"
	"github.com/nerrad567/planter-core/internal/plant"
	"github.com/nerrad567/planter-core/internal/validation"
)

// Day is the unit of a plant's watering frequency.
const Day = 24 * time.Hour

// DaysSince returns the number of whole days from last to now. Time running
// backwards yields 0.
func DaysSince(last, now time.Time) int {
	d := now.Sub(last)
	if d < 0 {
		return 0
	}
	return int(d / Day)
}

// IsDue reports whether p is due by schedule: active, and either never
// watered or watered at least WateringFrequencyDays whole days ago.
func IsDue(now time.Time, p plant.Plant) bool {
	if !p.Active {
		return false
	}
	if p.LastWatered == nil {
		return true
	}
	return DaysSince(*p.LastWatered, now) >= p.WateringFrequencyDays
}

// PlantsNeedingWater returns the plants due by schedule, in registry order.
func PlantsNeedingWater(now time.Time, plants []plant.Plant) []plant.Plant {
	var due []plant.Plant
	for _, p := range plants {
		if IsDue(now, p) {
			due = append(due, p)
		}
	}
	return due
}

// Candidate is a plant selected for watering and the rule that selected it.
type Candidate struct {
	Plant   plant.Plant
	Trigger plant.Trigger
}

// CandidatesDue returns the schedule-due plants as candidates.
func CandidatesDue(now time.Time, plants []plant.Plant) []Candidate {
	due := PlantsNeedingWater(now, plants)
	cs := make([]Candidate, len(due))
	for i, p := range due {
		cs[i] = Candidate{Plant: p, Trigger: plant.TriggerSchedule}
	}
	return cs
}

// Rule decides which plants a cycle waters.
type Rule struct {
	// MoistureCooldown stops a dry probe from re-triggering the same plant
	// every cycle. Zero disables the cooldown.
	MoistureCooldown time.Duration
}

// Qualify merges the two watering triggers into one decision. A plant
// qualifies if it is due by schedule, or if the soil is below the healthy
// floor and its cooldown has passed. Each plant appears at most once, in
// registry order. A failed soil read never triggers watering.
func (r Rule) Qualify(now time.Time, plants []plant.Plant, reading hardware.Reading, result validation.Result) []Candidate {
	dry := result.MoistureCritical() && !soilFaulted(reading)

	var out []Candidate
	for _, p := range plants {
		switch {
		case IsDue(now, p):
			out = append(out, Candidate{Plant: p, Trigger: plant.TriggerSchedule})
		case dry && p.Active && r.cooledDown(now, p):
			out = append(out, Candidate{Plant: p, Trigger: plant.TriggerMoisture})
		}
	}
	return out
}

func (r Rule) cooledDown(now time.Time, p plant.Plant) bool {
	if p.LastWatered == nil || r.MoistureCooldown <= 0 {
		return true
	}
	return now.Sub(*p.LastWatered) >= r.MoistureCooldown
}

func soilFaulted(r hardware.Reading) bool {
	for _, f := range r.Faults {
		if f == hardware.SensorSoil {
			return true
		}
	}
	return false
}

// Names lists candidate plant names in order.
func Names(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Plant.Name
	}
	return out
}
