// Package api implements the planter's HTTP REST API and WebSocket stream.
//
// It provides:
//   - status, sensor history and plant endpoints backed by the monitor loop
//   - manual watering and monitoring start/stop commands
//   - a WebSocket hub that pushes every status change to subscribed clients
//   - the Prometheus scrape endpoint
//   - a middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Reads never touch hardware: they come from the loop's published
// snapshot. Commands go through the loop, which runs every pump activation
// on its own goroutine, so an HTTP request can never start a pump while
// another is running.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
