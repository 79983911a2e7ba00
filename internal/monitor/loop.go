package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/planter-core/internal/hardware"
	"github.com/nerrad567/planter-core/internal/history"
	"github.com/nerrad567/planter-core/internal/plant"
	"github.com/nerrad567/planter-core/internal/scheduler"
	"github.com/nerrad567/planter-core/internal/validation"
)

const (
	// DefaultInterval is the pause between cycles.
	DefaultInterval = 60 * time.Second

	publishTimeout   = 15 * time.Second
	indicatorTimeout = 5 * time.Second
)

// Logger defines the logging interface used by the Loop.
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

// PlantSource is the read side of the plant registry.
type PlantSource interface {
	List() []plant.Plant
	Get(position int) (plant.Plant, error)
}

// Config tunes the loop.
type Config struct {
	Site      string
	Interval  time.Duration
	AutoStart bool
}

// Deps holds the components the loop drives. Reporter and Metrics are optional.
type Deps struct {
	Hardware  hardware.Capability
	Plants    PlantSource
	Scheduler *scheduler.Scheduler
	History   *history.Buffer
	Reporter  Reporter
	Metrics   Recorder
	Logger    Logger
}

type opKind int

const (
	opStart opKind = iota + 1
	opStop
	opWater
	opWaterAll
)

type request struct {
	op       opKind
	position int
	reply    chan reply
}

type reply struct {
	outcomes []scheduler.Outcome
	err      error
}

// Loop is the monitoring control loop. See the package documentation for
// its ownership rules.
type Loop struct {
	cfg      Config
	hw       hardware.Capability
	plants   PlantSource
	sched    *scheduler.Scheduler
	history  *history.Buffer
	reporter Reporter
	metrics  Recorder
	logger   Logger
	now      func() time.Time

	requests chan request
	started  atomic.Bool
	done     chan struct{}
	snapshot atomic.Pointer[StatusSnapshot]

	listenersMu sync.RWMutex
	listeners   []func(StatusSnapshot)

	cycleMu     sync.Mutex
	cycleCancel context.CancelFunc

	// Owned by the Run goroutine.
	state        State
	cycle        uint64
	reading      *hardware.Reading
	result       *validation.Result
	needing      []scheduler.Candidate
	lastWatering []WateringResult
	indicator    hardware.Indicator
	publishErr   string
}

// New creates a Loop. It does not start it.
//
// Parameters:
//   - cfg: Site, cycle interval and auto-start flag; a zero interval uses DefaultInterval
//   - deps: Hardware, Plants and Scheduler are required; the rest default to no-ops
//
// Returns:
//   - *Loop: Stopped loop, ready for Run
//   - error: If a required dependency is missing
func New(cfg Config, deps Deps) (*Loop, error) {
	switch {
	case deps.Hardware == nil:
		return nil, errors.New("monitor: hardware capability is required")
	case deps.Plants == nil:
		return nil, errors.New("monitor: plant source is required")
	case deps.Scheduler == nil:
		return nil, errors.New("monitor: scheduler is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	l := &Loop{
		cfg:       cfg,
		hw:        deps.Hardware,
		plants:    deps.Plants,
		sched:     deps.Scheduler,
		history:   deps.History,
		reporter:  deps.Reporter,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       time.Now,
		requests:  make(chan request),
		done:      make(chan struct{}),
		state:     StateStopped,
		indicator: hardware.IndicatorOff,
	}
	if l.history == nil {
		l.history = history.New(history.DefaultCapacity)
	}
	if l.reporter == nil {
		l.reporter = noopReporter{}
	}
	if l.metrics == nil {
		l.metrics = noopRecorder{}
	}
	if l.logger == nil {
		l.logger = noopLogger{}
	}
	l.sched.SetObserver(observer{l})

	s := l.buildSnapshot()
	l.snapshot.Store(&s)
	return l, nil
}

// SetClock replaces time.Now. Used by tests.
func (l *Loop) SetClock(now func() time.Time) { l.now = now }

// Subscribe registers fn to receive every new snapshot. fn runs on the loop
// goroutine and must not block.
func (l *Loop) Subscribe(fn func(StatusSnapshot)) {
	l.listenersMu.Lock()
	l.listeners = append(l.listeners, fn)
	l.listenersMu.Unlock()
}

// Status returns the latest snapshot.
func (l *Loop) Status() StatusSnapshot {
	return *l.snapshot.Load()
}

// History returns up to n of the newest readings, oldest first. n <= 0
// returns everything held.
func (l *Loop) History(n int) []hardware.Reading {
	return l.history.Recent(n)
}

// Done is closed once Run has returned and the hardware is released.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Run executes the loop until ctx is cancelled. It may be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.done)
	defer l.shutdown()

	timer := time.NewTimer(0)
	defer timer.Stop()
	if l.cfg.AutoStart {
		l.state = StateRunning
	} else {
		timer.Stop()
	}
	l.storeSnapshot()

	l.logger.Info("monitoring loop started",
		"state", l.state, "interval", l.cfg.Interval, "mode", l.hw.Mode())

	for {
		if ctx.Err() != nil {
			return nil
		}

		var tick <-chan time.Time
		if l.state == StateRunning {
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			if ctx.Err() != nil {
				return nil
			}
			l.runCycle(ctx)
			timer.Reset(l.cfg.Interval)
		case req := <-l.requests:
			l.handle(ctx, req, timer)
		}
	}
}

// Start resumes automatic cycles. The first cycle runs immediately.
func (l *Loop) Start(ctx context.Context) error {
	_, err := l.send(ctx, request{op: opStart})
	return err
}

// Stop pauses automatic cycles and interrupts a cycle in progress. Manual
// watering keeps working.
func (l *Loop) Stop(ctx context.Context) error {
	l.cycleMu.Lock()
	if l.cycleCancel != nil {
		l.cycleCancel()
	}
	l.cycleMu.Unlock()

	_, err := l.send(ctx, request{op: opStop})
	return err
}

// WaterNow waters the plant at position on the loop goroutine. A failed pump
// run is returned both as the error and in the outcome.
func (l *Loop) WaterNow(ctx context.Context, position int) (scheduler.Outcome, error) {
	rep, err := l.send(ctx, request{op: opWater, position: position})
	if err != nil {
		return scheduler.Outcome{}, err
	}
	if len(rep.outcomes) == 0 {
		return scheduler.Outcome{}, rep.err
	}
	return rep.outcomes[0], rep.err
}

// WaterAll waters every plant due by schedule.
func (l *Loop) WaterAll(ctx context.Context) ([]scheduler.Outcome, error) {
	rep, err := l.send(ctx, request{op: opWaterAll})
	if err != nil {
		return nil, err
	}
	return rep.outcomes, rep.err
}

func (l *Loop) send(ctx context.Context, req request) (reply, error) {
	if !l.started.Load() {
		return reply{}, ErrNotRunning
	}
	req.reply = make(chan reply, 1)

	select {
	case l.requests <- req:
	case <-l.done:
		return reply{}, ErrNotRunning
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep, nil
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (l *Loop) handle(ctx context.Context, req request, timer *time.Timer) {
	var rep reply

	switch req.op {
	case opStart:
		if l.state != StateRunning {
			l.state = StateRunning
			timer.Reset(0)
			l.logger.Info("monitoring started")
		}
		l.storeSnapshot()

	case opStop:
		if l.state != StateStopped {
			l.state = StateStopped
			timer.Stop()
			l.setIndicator(ctx, hardware.IndicatorOff)
			l.logger.Info("monitoring stopped", "cycles", l.cycle)
		}
		l.storeSnapshot()

	case opWater:
		p, err := l.plants.Get(req.position)
		if err != nil {
			rep.err = err
			break
		}
		if !p.Active {
			rep.err = fmt.Errorf("watering %s: %w", p.Name, plant.ErrPlantInactive)
			break
		}
		o := l.sched.Water(ctx, p, plant.TriggerManual)
		rep.outcomes = []scheduler.Outcome{o}
		rep.err = o.Err
		l.afterManual(ctx, rep.outcomes)

	case opWaterAll:
		rep.outcomes = l.sched.AutoWaterAll(ctx, l.plants.List())
		l.afterManual(ctx, rep.outcomes)
	}

	req.reply <- rep
}

func (l *Loop) afterManual(ctx context.Context, outcomes []scheduler.Outcome) {
	l.lastWatering = wateringResults(outcomes)
	l.refreshNeeding()
	l.publish(ctx)
	l.storeSnapshot()
}

// runCycle performs one read-classify-water-publish pass.
func (l *Loop) runCycle(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	l.cycleMu.Lock()
	l.cycleCancel = cancel
	l.cycleMu.Unlock()
	defer func() {
		l.cycleMu.Lock()
		l.cycleCancel = nil
		l.cycleMu.Unlock()
		cancel()
	}()

	start := time.Now()
	l.cycle++

	r := hardware.ReadAll(ctx, l.hw, l.logger)
	l.history.Append(r)
	l.reading = &r

	res := validation.Classify(r)
	l.result = &res

	candidates := l.sched.Rule().Qualify(l.now(), l.plants.List(), r, res)
	if len(candidates) > 0 {
		l.logger.Info("plants need water", "cycle", l.cycle, "plants", scheduler.Names(candidates))
		l.lastWatering = wateringResults(l.sched.WaterAll(ctx, candidates))
	}
	l.refreshNeeding()

	if parent.Err() == nil {
		l.publish(parent)
		state := hardware.IndicatorNormal
		if res.AnyCheck() {
			state = hardware.IndicatorWarning
		}
		l.setIndicator(parent, state)
	}

	l.metrics.CycleCompleted(time.Since(start), r)
	l.storeSnapshot()

	l.logger.Debug("cycle complete",
		"cycle", l.cycle,
		"duration", time.Since(start),
		"soil_moisture", r.SoilMoisturePct,
		"faults", r.Faults)
}

// refreshNeeding recomputes which plants still qualify after watering.
func (l *Loop) refreshNeeding() {
	if l.reading == nil || l.result == nil {
		l.needing = scheduler.CandidatesDue(l.now(), l.plants.List())
		return
	}
	l.needing = l.sched.Rule().Qualify(l.now(), l.plants.List(), *l.reading, *l.result)
}

func (l *Loop) publish(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := l.reporter.Publish(ctx, l.buildSnapshot()); err != nil {
		l.publishErr = err.Error()
		l.metrics.PublishFailed()
		l.logger.Warn("status publish failed", "error", err)
		return
	}
	l.publishErr = ""
}

func (l *Loop) setIndicator(ctx context.Context, state hardware.Indicator) {
	ctx, cancel := context.WithTimeout(ctx, indicatorTimeout)
	defer cancel()

	if err := l.hw.SetStatusIndicator(ctx, state); err != nil {
		l.logger.Warn("setting status indicator failed", "state", state, "error", err)
		return
	}
	l.indicator = state
}

func (l *Loop) shutdown() {
	l.state = StateStopped

	ctx, cancel := context.WithTimeout(context.Background(), indicatorTimeout)
	defer cancel()
	l.setIndicator(ctx, hardware.IndicatorOff)

	if err := l.hw.Close(); err != nil {
		l.logger.Error("closing hardware failed", "error", err)
	}
	l.storeSnapshot()
	l.logger.Info("monitoring loop exited", "cycles", l.cycle)
}

func (l *Loop) storeSnapshot() {
	s := l.buildSnapshot()
	l.snapshot.Store(&s)

	l.listenersMu.RLock()
	fns := l.listeners
	l.listenersMu.RUnlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (l *Loop) buildSnapshot() StatusSnapshot {
	s := StatusSnapshot{
		Timestamp:          l.now(),
		Site:               l.cfg.Site,
		Mode:               l.hw.Mode(),
		State:              l.state,
		Cycle:              l.cycle,
		PlantsNeedingWater: scheduler.Names(l.needing),
		Pumps:              l.sched.PumpStatus(),
		Indicator:          l.indicator,
		LastWatering:       l.lastWatering,
		HistoryCount:       l.history.Len(),
		LastPublishError:   l.publishErr,
	}
	if l.reading != nil {
		r := *l.reading
		r.Faults = append([]string(nil), r.Faults...)
		s.LastReading = &r
		s.WaterTankPct = r.WaterTankPct()
	}
	if l.result != nil {
		res := *l.result
		s.Validation = &res
	}
	s.Plants = l.plantStatuses()
	return s
}

func (l *Loop) plantStatuses() []PlantStatus {
	plants := l.plants.List()

	needs := make(map[int]bool, len(l.needing))
	for _, c := range l.needing {
		needs[c.Plant.Position] = true
	}

	var graded map[int]validation.Result
	if l.reading != nil {
		var active []int
		for _, p := range plants {
			if p.Active {
				active = append(active, p.Position)
			}
		}
		graded = validation.ClassifyPlants(*l.reading, active)
	}

	out := make([]PlantStatus, len(plants))
	for i, p := range plants {
		out[i] = PlantStatus{
			Name:        p.Name,
			Position:    p.Position,
			PumpID:      p.PumpID(),
			Active:      p.Active,
			LastWatered: p.LastWatered,
			NeedsWater:  needs[p.Position],
		}
		if res, ok := graded[p.Position]; ok {
			out[i].Validation = &res
		}
	}
	return out
}

// observer adapts the Loop to scheduler.Observer. Both callbacks run on the
// loop goroutine.
type observer struct{ l *Loop }

func (o observer) PumpChanged(s scheduler.PumpStatus) {
	o.l.metrics.PumpChanged(s)
	o.l.storeSnapshot()
}

func (o observer) Watered(out scheduler.Outcome) {
	o.l.metrics.Watered(out)
}
