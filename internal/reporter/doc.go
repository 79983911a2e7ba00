// Package reporter implements monitor.Reporter for every outlet the
// appliance pushes status to: MQTT, the legacy web interface over HTTP,
// InfluxDB and the WebSocket hub.
//
// Outlets are combined with Multi and each one is normally wrapped in
// Guarded, which adds bounded retry and a circuit breaker so that a dead
// outlet costs the monitoring loop nothing after a few cycles.
//
// Every error returned from this package is, or wraps, a *TransportError
// naming the outlet that failed.
package reporter
