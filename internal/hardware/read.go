package hardware

import (
	"context"
	"time"
)

// Logger defines the logging interface used by the hardware package.
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

// ReadAll performs one combined read. A failing sub-read never aborts the
// others: its fields fall back to zero or false, the failure is logged, and
// the sensor is listed in Reading.Faults.
func ReadAll(ctx context.Context, c Capability, logger Logger) Reading {
	if logger == nil {
		logger = noopLogger{}
	}

	r := Reading{Timestamp: time.Now()}

	fault := func(sensor string, err error) {
		logger.Warn("sensor read failed, using default", "sensor", sensor, "error", err)
		r.Faults = append(r.Faults, sensor)
	}

	if t, h, err := c.ReadTemperatureHumidity(ctx); err != nil {
		fault(SensorClimate, err)
	} else {
		r.TemperatureC, r.HumidityPct = t, h
	}

	if m, err := c.ReadSoilMoisture(ctx); err != nil {
		fault(SensorSoil, err)
	} else {
		r.SoilMoisturePct = m
	}

	if l, err := c.ReadLightLevel(ctx); err != nil {
		fault(SensorLight, err)
	} else {
		r.LightLux = l
	}

	if top, mid, bot, err := c.ReadWaterLevels(ctx); err != nil {
		fault(SensorWaterLevels, err)
	} else {
		r.WaterLevelTop, r.WaterLevelMiddle, r.WaterLevelBottom = top, mid, bot
	}

	return r
}

// CapDuration clamps a requested pump run to the safety timeout.
func CapDuration(d, limit time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
