package hardware

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Simulated sensor ranges. Each reading is drawn uniformly from [min, max].
const (
	simTempMin, simTempMax         = 17.0, 28.0
	simHumidityMin, simHumidityMax = 30.0, 60.0
	simSoilMin, simSoilMax         = 30.0, 70.0
	simLightMin, simLightMax       = 50.0, 550.0
)

// PumpRun records one simulated pump activation.
type PumpRun struct {
	PumpID    int
	Requested time.Duration
	Ran       time.Duration
	Completed bool
}

// Simulated generates plausible sensor values and fakes actuators in
// memory. Pump runs still block for their real duration, scaled by the
// configured time scale, so timing behaviour matches the appliance.
type Simulated struct {
	mu        sync.Mutex
	rng       *rand.Rand
	indicator Indicator
	runs      []PumpRun
	active    map[int]bool
	closed    bool

	safetyTimeout time.Duration
	timeScale     float64
}

// SimulatedOption configures a Simulated capability.
type SimulatedOption func(*Simulated)

// WithSeed makes readings reproducible.
func WithSeed(seed int64) SimulatedOption {
	return func(s *Simulated) { s.rng = rand.New(rand.NewSource(seed)) } //nolint:gosec // Not security sensitive
}

// WithSafetyTimeout caps each pump run.
func WithSafetyTimeout(d time.Duration) SimulatedOption {
	return func(s *Simulated) { s.safetyTimeout = d }
}

// WithTimeScale multiplies pump sleep time. 0.001 turns a 2.5s run into 2.5ms.
func WithTimeScale(f float64) SimulatedOption {
	return func(s *Simulated) {
		if f > 0 {
			s.timeScale = f
		}
	}
}

// NewSimulated returns a ready Simulated capability.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // Not security sensitive
		indicator:     IndicatorOff,
		active:        make(map[int]bool, 2),
		safetyTimeout: DefaultSafetyTimeout,
		timeScale:     1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulated) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Simulated) ReadTemperatureHumidity(context.Context) (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, 0, &SensorError{Sensor: SensorClimate, Err: ErrClosed}
	}
	return s.uniform(simTempMin, simTempMax), s.uniform(simHumidityMin, simHumidityMax), nil
}

func (s *Simulated) ReadSoilMoisture(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, &SensorError{Sensor: SensorSoil, Err: ErrClosed}
	}
	return s.uniform(simSoilMin, simSoilMax), nil
}

func (s *Simulated) ReadLightLevel(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, &SensorError{Sensor: SensorLight, Err: ErrClosed}
	}
	return s.uniform(simLightMin, simLightMax), nil
}

func (s *Simulated) ReadWaterLevels(context.Context) (bool, bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, false, false, &SensorError{Sensor: SensorWaterLevels, Err: ErrClosed}
	}
	return s.rng.Intn(2) == 1, s.rng.Intn(2) == 1, s.rng.Intn(2) == 1, nil
}

// RunPump blocks for the (capped, scaled) duration. Cancellation stops the
// run early and is reported as an ActuatorError wrapping ctx.Err().
func (s *Simulated) RunPump(ctx context.Context, pumpID int, duration time.Duration) error {
	if pumpID != Pump1 && pumpID != Pump2 {
		return &ActuatorError{Actuator: "pump", PumpID: pumpID, Err: ErrInvalidPump}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &ActuatorError{Actuator: "pump", PumpID: pumpID, Err: ErrClosed}
	}
	s.active[pumpID] = true
	requested := duration
	wait := time.Duration(float64(CapDuration(duration, s.safetyTimeout)) * s.timeScale)
	s.mu.Unlock()

	start := time.Now()
	err := sleep(ctx, wait)

	s.mu.Lock()
	s.active[pumpID] = false
	s.runs = append(s.runs, PumpRun{
		PumpID:    pumpID,
		Requested: requested,
		Ran:       time.Since(start),
		Completed: err == nil,
	})
	s.mu.Unlock()

	if err != nil {
		return &ActuatorError{Actuator: "pump", PumpID: pumpID, Err: err}
	}
	return nil
}

func (s *Simulated) SetStatusIndicator(_ context.Context, state Indicator) error {
	if !state.Valid() {
		return &ActuatorError{Actuator: "indicator", Err: ErrInvalidIndicator}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &ActuatorError{Actuator: "indicator", Err: ErrClosed}
	}
	s.indicator = state
	return nil
}

func (s *Simulated) Mode() Mode { return ModeSimulated }

// Close switches everything off. Further calls fail with ErrClosed.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.indicator = IndicatorOff
	return nil
}

// Indicator returns the last indicator state set.
func (s *Simulated) Indicator() Indicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indicator
}

// PumpActive reports whether pumpID is currently running.
func (s *Simulated) PumpActive(pumpID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[pumpID]
}

// PumpRuns returns a copy of every recorded activation.
func (s *Simulated) PumpRuns() []PumpRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PumpRun, len(s.runs))
	copy(out, s.runs)
	return out
}
