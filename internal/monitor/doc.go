// Package monitor runs the planter's control loop.
//
// A Loop owns every piece of mutable cycle state: the reading history, the
// pump status and the published snapshot. It runs on a single goroutine
// started with Run. Other goroutines talk to it in two ways:
//
//   - Commands (Start, Stop, WaterNow, WaterAll) are sent over a channel and
//     executed on the loop goroutine, so every pump activation in the
//     process is serialized.
//   - Status reads the latest StatusSnapshot, published through an atomic
//     pointer. A snapshot is never modified after it is published.
//
// Each cycle reads all sensors, appends the reading to history, classifies
// it, waters qualifying plants, publishes a snapshot to the Reporter and
// sets the status indicator. Stop pauses cycles; manual watering still
// works while paused. When Run returns the indicator is switched off and
// the hardware capability is closed.
package monitor
