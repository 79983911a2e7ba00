package scheduler

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/nerrad567/planter-core/internal/hardware"
	"github.com/nerrad567/planter-core/internal/plant"
)

// Defaults for Config fields left at zero.
const (
	DefaultFlowRate             = 100.0 // ml per second
	DefaultInterActivationDelay = 2 * time.Second
)

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PlantStore records successful waterings.
type PlantStore interface {
	MarkWatered(ctx context.Context, position int, at time.Time) error
}

// Observer is told about pump state changes and finished waterings.
// Callbacks run on the goroutine driving the Scheduler and must not block.
type Observer interface {
	PumpChanged(status PumpStatus)
	Watered(outcome Outcome)
}

type noopObserver struct{}

func (noopObserver) PumpChanged(PumpStatus) {}
func (noopObserver) Watered(Outcome)        {}

// PumpStatus is the live state of both pumps.
type PumpStatus struct {
	Pump1Active bool       `json:"pump1_active"`
	Pump2Active bool       `json:"pump2_active"`
	LastWatered *time.Time `json:"last_watered,omitempty"`
}

// Active reports whether pumpID is running.
func (s PumpStatus) Active(pumpID int) bool {
	switch pumpID {
	case hardware.Pump1:
		return s.Pump1Active
	case hardware.Pump2:
		return s.Pump2Active
	}
	return false
}

func (s PumpStatus) clone() PumpStatus {
	if s.LastWatered != nil {
		t := *s.LastWatered
		s.LastWatered = &t
	}
	return s
}

// Outcome is the result of one watering attempt.
type Outcome struct {
	Plant    plant.Plant
	Trigger  plant.Trigger
	PumpID   int
	Duration time.Duration
	At       time.Time
	Err      error
}

// OK reports whether the watering succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Config tunes watering.
type Config struct {
	FlowRateMLPerSecond  float64
	SafetyTimeout        time.Duration
	InterActivationDelay time.Duration
	Rule                 Rule
}

// Scheduler runs pumps for plants and records the results.
//
// It is not safe for concurrent use. The monitor loop owns it, which is
// what serializes every pump activation in the process.
type Scheduler struct {
	hw       hardware.Capability
	store    PlantStore
	events   plant.EventRecorder
	cfg      Config
	now      func() time.Time
	status   PumpStatus
	logger   Logger
	observer Observer
}

// New creates a Scheduler. events may be nil.
//
// Parameters:
//   - hw: Pump and sensor access
//   - store: Registry updated after each successful watering
//   - events: Watering log; nil skips persistence
//   - cfg: Flow rate, safety timeout, inter-activation delay and trigger rule
//
// Returns:
//   - *Scheduler: Scheduler with both pumps idle
func New(hw hardware.Capability, store PlantStore, events plant.EventRecorder, cfg Config) *Scheduler {
	if cfg.FlowRateMLPerSecond <= 0 {
		cfg.FlowRateMLPerSecond = DefaultFlowRate
	}
	if cfg.SafetyTimeout <= 0 {
		cfg.SafetyTimeout = hardware.DefaultSafetyTimeout
	}
	if cfg.InterActivationDelay < 0 {
		cfg.InterActivationDelay = 0
	}
	return &Scheduler{
		hw:       hw,
		store:    store,
		events:   events,
		cfg:      cfg,
		now:      time.Now,
		logger:   noopLogger{},
		observer: noopObserver{},
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) { s.logger = logger }

// SetObserver registers the observer for pump and watering events.
func (s *Scheduler) SetObserver(o Observer) { s.observer = o }

// SetClock replaces time.Now. Used by tests.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Rule returns the qualification rule in use.
func (s *Scheduler) Rule() Rule { return s.cfg.Rule }

// PumpStatus returns a copy of the live pump state.
func (s *Scheduler) PumpStatus() PumpStatus { return s.status.clone() }

// Duration converts p's water amount to a pump run time, capped by the
// safety timeout.
func (s *Scheduler) Duration(p plant.Plant) time.Duration {
	return WaterDuration(p.WaterAmountML, s.cfg.FlowRateMLPerSecond, s.cfg.SafetyTimeout)
}

// WaterDuration is amountML / flowRate seconds, capped at limit.
func WaterDuration(amountML, flowRate float64, limit time.Duration) time.Duration {
	if amountML <= 0 || flowRate <= 0 {
		return 0
	}
	secs := amountML / flowRate
	d := time.Duration(math.Round(secs * float64(time.Second)))
	return hardware.CapDuration(d, limit)
}

// Water runs the pump for p. On success last_watered becomes now, both in
// the store and in the pump status. On failure the plant is left as it was.
// The attempt is recorded either way and never panics.
func (s *Scheduler) Water(ctx context.Context, p plant.Plant, trigger plant.Trigger) Outcome {
	out := Outcome{
		Plant:    p,
		Trigger:  trigger,
		PumpID:   p.PumpID(),
		Duration: s.Duration(p),
	}

	s.setPump(out.PumpID, true)
	err := s.hw.RunPump(ctx, out.PumpID, out.Duration)
	out.At = s.now()

	if err != nil {
		out.Err = err
		s.setPump(out.PumpID, false)
		s.logger.Error("watering failed",
			"plant", p.Name, "position", p.Position, "pump", out.PumpID, "error", err)
	} else {
		at := out.At
		s.status.LastWatered = &at
		s.setPump(out.PumpID, false)
		// The water went in even if the bookkeeping below fails.
		if serr := s.store.MarkWatered(context.WithoutCancel(ctx), p.Position, out.At); serr != nil {
			s.logger.Error("recording watering failed", "plant", p.Name, "error", serr)
		}
		s.logger.Info("plant watered",
			"plant", p.Name, "position", p.Position, "pump", out.PumpID,
			"duration", out.Duration, "trigger", trigger)
	}

	s.record(ctx, out)
	s.observer.Watered(out)
	return out
}

// WaterAll waters candidates in order, pausing between activations. A
// cancelled context stops the run; the returned outcomes cover only the
// plants that were attempted.
func (s *Scheduler) WaterAll(ctx context.Context, candidates []Candidate) []Outcome {
	outcomes := make([]Outcome, 0, len(candidates))
	for i, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		o := s.Water(ctx, c.Plant, c.Trigger)
		outcomes = append(outcomes, o)

		if o.OK() && i < len(candidates)-1 {
			select {
			case <-time.After(s.cfg.InterActivationDelay):
			case <-ctx.Done():
				return outcomes
			}
		}
	}
	return outcomes
}

// AutoWaterAll waters every plant due by schedule.
func (s *Scheduler) AutoWaterAll(ctx context.Context, plants []plant.Plant) []Outcome {
	return s.WaterAll(ctx, CandidatesDue(s.now(), plants))
}

func (s *Scheduler) setPump(id int, on bool) {
	switch id {
	case hardware.Pump1:
		s.status.Pump1Active = on
	case hardware.Pump2:
		s.status.Pump2Active = on
	default:
		return
	}
	s.observer.PumpChanged(s.status.clone())
}

func (s *Scheduler) record(ctx context.Context, o Outcome) {
	if s.events == nil {
		return
	}
	e := &plant.WateringEvent{
		PlantName:     o.Plant.Name,
		Position:      o.Plant.Position,
		PumpID:        o.PumpID,
		WaterAmountML: o.Plant.WaterAmountML,
		DurationMS:    o.Duration.Milliseconds(),
		Trigger:       o.Trigger,
		Success:       o.OK(),
		OccurredAt:    o.At,
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	// Recording must survive a cancelled cycle.
	if err := s.events.Record(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("storing watering event failed", "plant", o.Plant.Name, "error", err)
	}
}

// IsCancelled reports whether an outcome failed only because its context ended.
func IsCancelled(o Outcome) bool {
	return o.Err != nil && (errors.Is(o.Err, context.Canceled) || errors.Is(o.Err, context.DeadlineExceeded))
}
