// Package plant holds the plant registry and the watering event log.
//
// The Registry is shared between the monitoring loop and the command
// surface. It guards its state with a RWMutex, keeps critical sections to a
// single lookup or a single write-through, and hands out deep copies only.
package plant
