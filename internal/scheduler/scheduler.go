package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per interval.
type TickFunc func(ctx context.Context) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler drives the periodic evaluation loop. Ticks run inline in the loop
// goroutine, so two ticks can never execute concurrently: a tick that overruns
// the interval delays the next one, and missed intervals are dropped rather
// than buffered.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function every interval until ctx is
// cancelled. Tick errors are logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := time.Now().Add(s.opts.Interval)
	for {
		delay := time.Until(next)
		if delay < 0 {
			// The previous tick overran; re-anchor instead of firing a burst.
			next = time.Now().Add(s.opts.Interval)
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := tick(ctx); err != nil {
			s.logger.Error().Err(err).Msg("tick failed")
		}

		next = next.Add(s.opts.Interval)
	}
}
