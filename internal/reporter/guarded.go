package reporter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/nerrad567/planter-core/internal/infrastructure/config"
	"github.com/nerrad567/planter-core/internal/monitor"
)

// Breaker defaults for zero config fields.
const (
	defaultTripAfter   = 5
	defaultOpenTimeout = 60 * time.Second
)

// Guarded wraps a reporter with bounded exponential retry and a circuit
// breaker. While the breaker is open Publish fails fast without touching
// the outlet.
type Guarded struct {
	name   string
	next   monitor.Reporter
	cb     *gobreaker.CircuitBreaker
	retry  config.RetryConfig
	logger Logger
}

// NewGuarded wraps next. name identifies the outlet in errors and logs.
func NewGuarded(name string, next monitor.Reporter, retry config.RetryConfig, breaker config.BreakerConfig, logger Logger) *Guarded {
	if logger == nil {
		logger = noopLogger{}
	}
	g := &Guarded{name: name, next: next, retry: retry, logger: logger}
	g.cb = newBreaker(name, breaker, func(from, to gobreaker.State) {
		g.logger.Warn("reporter circuit breaker state changed",
			"reporter", name, "from", from.String(), "to", to.String())
	})
	return g
}

func newBreaker(name string, cfg config.BreakerConfig, onChange func(from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	fails := cfg.ConsecutiveFailures
	if fails == 0 {
		fails = defaultTripAfter
	}
	timeout := time.Duration(cfg.OpenTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultOpenTimeout
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: time.Duration(cfg.Interval) * time.Second,
		Timeout:  timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		// A cancelled publish says nothing about the outlet.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			onChange(from, to)
		},
	})
}

// Name returns the outlet name.
func (g *Guarded) Name() string { return g.name }

// State returns the breaker state: "closed", "half-open" or "open".
func (g *Guarded) State() string { return g.cb.State().String() }

// Publish implements monitor.Reporter.
func (g *Guarded) Publish(ctx context.Context, s monitor.StatusSnapshot) error {
	_, err := g.cb.Execute(func() (any, error) {
		return nil, g.publishWithRetry(ctx, s)
	})
	return wrap(g.name, err)
}

func (g *Guarded) publishWithRetry(ctx context.Context, s monitor.StatusSnapshot) error {
	attempt := func() error {
		err := g.next.Publish(ctx, s)
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(attempt, g.backOff(ctx))
}

func (g *Guarded) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if g.retry.InitialInterval > 0 {
		bo.InitialInterval = time.Duration(g.retry.InitialInterval) * time.Millisecond
	}
	if g.retry.MaxInterval > 0 {
		bo.MaxInterval = time.Duration(g.retry.MaxInterval) * time.Millisecond
	}
	// The publish timeout bounds the whole run, not the backoff.
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, g.retry.MaxRetries), ctx)
}
