package hardware

import (
	"context"
	"time"
)

// Mode identifies the capability variant chosen at startup.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModePhysical  Mode = "physical"
)

// Indicator is the state of the status LEDs.
type Indicator string

const (
	IndicatorNormal  Indicator = "normal"
	IndicatorWarning Indicator = "warning"
	IndicatorOff     Indicator = "off"
)

// Valid reports whether i is a known indicator state.
func (i Indicator) Valid() bool {
	switch i {
	case IndicatorNormal, IndicatorWarning, IndicatorOff:
		return true
	}
	return false
}

// Pump identifiers.
const (
	Pump1 = 1
	Pump2 = 2
)

// Capability is the uniform sensor and actuator surface. Simulated and
// Physical both implement it; callers never learn which one they hold.
//
// Implementations are safe for concurrent use, but the monitor only ever
// drives pumps from a single goroutine.
type Capability interface {
	// ReadTemperatureHumidity returns degrees Celsius and relative humidity percent.
	ReadTemperatureHumidity(ctx context.Context) (tempC, humidityPct float64, err error)

	// ReadSoilMoisture returns a percentage in [0, 100].
	ReadSoilMoisture(ctx context.Context) (float64, error)

	// ReadLightLevel returns lux, never negative.
	ReadLightLevel(ctx context.Context) (float64, error)

	// ReadWaterLevels returns the three float switches, top to bottom.
	ReadWaterLevels(ctx context.Context) (top, middle, bottom bool, err error)

	// RunPump energises pumpID for duration (capped by the safety timeout),
	// blocking until the run completes or ctx is done. The pump is always
	// off when RunPump returns.
	RunPump(ctx context.Context, pumpID int, duration time.Duration) error

	// SetStatusIndicator drives the status LEDs.
	SetStatusIndicator(ctx context.Context, state Indicator) error

	// Mode reports which variant this is.
	Mode() Mode

	// Close releases pins and buses. Pumps and LEDs are switched off.
	Close() error
}

// Reading is one combined snapshot of every sensor. It is a value; nothing
// mutates a Reading after ReadAll returns it.
type Reading struct {
	Timestamp        time.Time `json:"timestamp"`
	TemperatureC     float64   `json:"temperature"`
	HumidityPct      float64   `json:"humidity"`
	SoilMoisturePct  float64   `json:"soil_moisture"`
	LightLux         float64   `json:"light_level"`
	WaterLevelTop    bool      `json:"water_level_top"`
	WaterLevelMiddle bool      `json:"water_level_middle"`
	WaterLevelBottom bool      `json:"water_level_bottom"`

	// Faults names the sub-reads that failed and were replaced by defaults.
	Faults []string `json:"faults,omitempty"`
}

// WaterTankPct derives the tank fill level from the float switches.
func (r Reading) WaterTankPct() float64 {
	return WaterTankPct(r.WaterLevelTop, r.WaterLevelMiddle, r.WaterLevelBottom)
}

// Degraded reports whether any sub-read failed.
func (r Reading) Degraded() bool {
	return len(r.Faults) > 0
}

// WaterTankPct maps float switches to a fill percentage. Evaluation is
// top-down and unconditional: a wet top switch means full, whatever the
// lower switches report.
func WaterTankPct(top, middle, bottom bool) float64 {
	switch {
	case top:
		return 100.0
	case middle:
		return 66.7
	case bottom:
		return 33.3
	default:
		return 0.0
	}
}

// Sensor names used in SensorError and Reading.Faults.
const (
	SensorClimate     = "temperature_humidity"
	SensorSoil        = "soil_moisture"
	SensorLight       = "light"
	SensorWaterLevels = "water_levels"
)
