// Package validation classifies sensor readings against the healthy ranges
// for an indoor plant.
//
// Classification is pure and uses the same thresholds for every plant.
package validation

import (
	"github.com/nerrad567/planter-core/internal/hardware"
)

// Status is the health of one metric.
type Status string

const (
	StatusOK    Status = "OK"
	StatusCheck Status = "CHECK"
)

// Range is an inclusive healthy band.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Healthy ranges.
var (
	SoilMoistureRange = Range{Min: 20, Max: 70}
	TemperatureRange  = Range{Min: 15, Max: 30}
	HumidityRange     = Range{Min: 30, Max: 80}
	LightRange        = Range{Min: 50, Max: 500}
)

// Metric is a value with its classification.
type Metric struct {
	Value  float64 `json:"value"`
	Status Status  `json:"status"`
}

// Result classifies every metric of one reading.
type Result struct {
	SoilMoisture Metric `json:"soil_moisture"`
	Temperature  Metric `json:"temperature"`
	Humidity     Metric `json:"humidity"`
	Light        Metric `json:"light"`
}

// AnyCheck reports whether at least one metric is out of range.
func (r Result) AnyCheck() bool {
	return r.SoilMoisture.Status == StatusCheck ||
		r.Temperature.Status == StatusCheck ||
		r.Humidity.Status == StatusCheck ||
		r.Light.Status == StatusCheck
}

// MoistureCritical reports whether the soil is below the healthy floor.
// A reading above the ceiling is CHECK too, but watering would not help it.
func (r Result) MoistureCritical() bool {
	return r.SoilMoisture.Value < SoilMoistureRange.Min
}

// Classify grades each metric of r. Bounds are inclusive.
func Classify(r hardware.Reading) Result {
	return Result{
		SoilMoisture: grade(r.SoilMoisturePct, SoilMoistureRange),
		Temperature:  grade(r.TemperatureC, TemperatureRange),
		Humidity:     grade(r.HumidityPct, HumidityRange),
		Light:        grade(r.LightLux, LightRange),
	}
}

// ClassifyPlants applies Classify to every plant position. All plants share
// the same sensors, so each entry carries the same grades.
func ClassifyPlants(r hardware.Reading, positions []int) map[int]Result {
	res := Classify(r)
	out := make(map[int]Result, len(positions))
	for _, p := range positions {
		out[p] = res
	}
	return out
}

func grade(v float64, band Range) Metric {
	m := Metric{Value: v, Status: StatusOK}
	if !band.Contains(v) {
		m.Status = StatusCheck
	}
	return m
}
