// Package influxdb writes planter telemetry to InfluxDB 2.x.
//
// Two measurements are produced: sensor_reading, one point per monitoring
// cycle, and watering, one point per pump activation. Writes are batched
// and non-blocking; asynchronous failures reach the SetOnError callback.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
package influxdb
