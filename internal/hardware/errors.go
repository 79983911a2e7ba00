package hardware

import (
	"errors"
	"fmt"
)

// Sentinel errors for the hardware package.
var (
	// ErrInvalidPump is returned when a pump ID other than 1 or 2 is requested.
	ErrInvalidPump = errors.New("hardware: invalid pump id")

	// ErrInvalidIndicator is returned for an unknown indicator state.
	ErrInvalidIndicator = errors.New("hardware: invalid indicator state")

	// ErrInvalidMode is returned when the configured mode is neither simulated nor physical.
	ErrInvalidMode = errors.New("hardware: invalid mode")

	// ErrClosed is returned by any operation after Close.
	ErrClosed = errors.New("hardware: capability closed")
)

// SensorError reports a failed sensor read. The cycle continues with defaults.
type SensorError struct {
	Sensor string
	Err    error
}

func (e *SensorError) Error() string {
	return fmt.Sprintf("hardware: reading %s: %v", e.Sensor, e.Err)
}

func (e *SensorError) Unwrap() error { return e.Err }

// ActuatorError reports a failed pump or indicator command.
// The affected pump has been forced off before this is returned.
type ActuatorError struct {
	Actuator string
	PumpID   int
	Err      error
}

func (e *ActuatorError) Error() string {
	if e.PumpID > 0 {
		return fmt.Sprintf("hardware: %s %d: %v", e.Actuator, e.PumpID, e.Err)
	}
	return fmt.Sprintf("hardware: %s: %v", e.Actuator, e.Err)
}

func (e *ActuatorError) Unwrap() error { return e.Err }

// InitializationError means the capability could not be brought up. It is fatal.
type InitializationError struct {
	Component string
	Err       error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("hardware: initialising %s: %v", e.Component, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }
