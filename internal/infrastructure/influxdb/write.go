package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementReading  = "sensor_reading"
	MeasurementWatering = "watering"
)

// ReadingPoint is one environmental sample.
type ReadingPoint struct {
	Site            string
	At              time.Time
	TemperatureC    float64
	HumidityPct     float64
	SoilMoisturePct float64
	LightLux        float64
	WaterTankPct    float64
	Faults          int
}

// WateringPoint is one pump activation.
type WateringPoint struct {
	Site     string
	Plant    string
	Position int
	PumpID   int
	Trigger  string
	Duration time.Duration
	WaterML  float64
	Success  bool
	At       time.Time
}

// WriteReading queues a sensor_reading point.
func (c *Client) WriteReading(p ReadingPoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(readingPoint(p))
}

// WriteWatering queues a watering point.
func (c *Client) WriteWatering(p WateringPoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(wateringPoint(p))
}

func readingPoint(p ReadingPoint) *write.Point {
	return write.NewPoint(
		MeasurementReading,
		map[string]string{"site": p.Site},
		map[string]interface{}{
			"temperature":    p.TemperatureC,
			"humidity":       p.HumidityPct,
			"soil_moisture":  p.SoilMoisturePct,
			"light_level":    p.LightLux,
			"water_tank_pct": p.WaterTankPct,
			"faults":         p.Faults,
		},
		stamp(p.At),
	)
}

func wateringPoint(p WateringPoint) *write.Point {
	return write.NewPoint(
		MeasurementWatering,
		map[string]string{
			"site":     p.Site,
			"plant":    p.Plant,
			"position": strconv.Itoa(p.Position),
			"pump":     strconv.Itoa(p.PumpID),
			"trigger":  p.Trigger,
		},
		map[string]interface{}{
			"duration_ms": p.Duration.Milliseconds(),
			"water_ml":    p.WaterML,
			"success":     p.Success,
		},
		stamp(p.At),
	)
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
