package reporter

import (
	"context"
	"time"

	"github.com/nerrad567/planter-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/planter-core/internal/monitor"
)

// PointWriter is the part of the InfluxDB client the reporter needs.
type PointWriter interface {
	WriteReading(p influxdb.ReadingPoint)
	WriteWatering(p influxdb.WateringPoint)
}

// Influx writes one sensor_reading point per cycle and one watering point
// per pump activation. Writes are queued, so Publish only fails on a
// cancelled context.
type Influx struct {
	w    PointWriter
	site string
	cur  cursor
}

// NewInflux creates an InfluxDB reporter.
func NewInflux(w PointWriter, site string) *Influx {
	return &Influx{w: w, site: site}
}

// Publish implements monitor.Reporter.
func (in *Influx) Publish(ctx context.Context, s monitor.StatusSnapshot) error {
	if err := ctx.Err(); err != nil {
		return wrap("influxdb", err)
	}

	d := in.cur.next(s)
	if d.reading {
		r := s.LastReading
		in.w.WriteReading(influxdb.ReadingPoint{
			Site:            in.site,
			At:              r.Timestamp,
			TemperatureC:    r.TemperatureC,
			HumidityPct:     r.HumidityPct,
			SoilMoisturePct: r.SoilMoisturePct,
			LightLux:        r.LightLux,
			WaterTankPct:    r.WaterTankPct(),
			Faults:          len(r.Faults),
		})
	}
	for _, w := range d.waterings {
		in.w.WriteWatering(influxdb.WateringPoint{
			Site:     in.site,
			Plant:    w.Plant,
			Position: w.Position,
			PumpID:   w.PumpID,
			Trigger:  w.Trigger,
			Duration: time.Duration(w.DurationMS) * time.Millisecond,
			WaterML:  w.WaterML,
			Success:  w.Success,
			At:       w.At,
		})
	}
	in.cur.commit(d)
	return nil
}
