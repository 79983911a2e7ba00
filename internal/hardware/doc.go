// Package hardware is the sensor and actuator surface of the planter.
//
// Two variants implement Capability: Simulated, which draws readings from
// fixed uniform ranges and fakes the pumps, and Physical, which drives a
// Raspberry Pi through periph.io. The variant is chosen once by New and is
// invisible to callers.
//
// Sensor failures surface as *SensorError and are never fatal; ReadAll
// degrades the failing field to its zero value. Pump and LED failures
// surface as *ActuatorError with the pump already forced off. Only
// *InitializationError should stop the process.
package hardware
