package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"delta-guard/internal/alerting"
	"delta-guard/internal/fetcher"
	"delta-guard/internal/procctl"
	"delta-guard/internal/scheduler"
	"delta-guard/internal/storage"
)

// ProcessKiller terminates every process matching a name.
type ProcessKiller interface {
	TerminateByName(name string) ([]procctl.Result, error)
}

// Options parameterise the monitor.
type Options struct {
	Currency string
	// Bound is the maximum allowed |delta|.
	Bound decimal.Decimal
	// Hold is how long the delta must stay out of band before action fires.
	Hold time.Duration
	// Process is the name of the process to terminate on a sustained violation.
	Process string
}

// Monitor owns the violation state machine. Each tick fetches one sample,
// advances the state, and on a sustained violation kills the target process
// and sends an alert, exactly once per violation episode.
//
// episodeStart is written only from the tick path; the scheduler serialises
// ticks, so no lock guards it.
type Monitor struct {
	opts     Options
	sched    *scheduler.Scheduler
	fetcher  fetcher.DeltaFetcher
	killer   ProcessKiller
	notifier alerting.Notifier
	events   storage.TriggerEventStore
	logger   zerolog.Logger

	now func() time.Time

	// Zero while the last sample was in band; otherwise the time the current
	// out-of-band streak was first observed.
	episodeStart time.Time
}

// New constructs the monitor. notifier and events may be nil.
func New(opts Options, sched *scheduler.Scheduler, f fetcher.DeltaFetcher, killer ProcessKiller, notifier alerting.Notifier, events storage.TriggerEventStore, logger zerolog.Logger) *Monitor {
	return &Monitor{
		opts:     opts,
		sched:    sched,
		fetcher:  f,
		killer:   killer,
		notifier: notifier,
		events:   events,
		logger:   logger.With().Str("component", "watchdog").Logger(),
		now:      time.Now,
	}
}

// Run blocks, evaluating one sample per interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	if m.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	m.logger.Info().
		Str("currency", m.opts.Currency).
		Str("bound", m.opts.Bound.String()).
		Dur("hold", m.opts.Hold).
		Str("process", m.opts.Process).
		Msg("watchdog started")
	return m.sched.Run(ctx, m.Tick)
}

// Tick performs one fetch/evaluate/act cycle.
func (m *Monitor) Tick(ctx context.Context) error {
	delta, err := m.fetcher.FetchDelta(ctx, m.opts.Currency)
	if err != nil {
		// A failed fetch is a skipped sample: the episode clock neither
		// starts, extends, nor resets.
		return fmt.Errorf("fetch delta: %w", err)
	}

	now := m.now()

	if delta.Abs().LessThanOrEqual(m.opts.Bound) {
		if !m.episodeStart.IsZero() {
			m.logger.Info().Str("delta", delta.String()).Msg("delta back in band, episode reset")
		}
		m.episodeStart = time.Time{}
		return nil
	}

	if m.episodeStart.IsZero() {
		m.episodeStart = now
		m.logger.Warn().Str("delta", delta.String()).Str("bound", m.opts.Bound.String()).
			Msg("delta out of band, episode started")
		return nil
	}

	elapsed := now.Sub(m.episodeStart)
	if elapsed < m.opts.Hold {
		m.logger.Warn().Str("delta", delta.String()).Dur("elapsed", elapsed).Dur("hold", m.opts.Hold).
			Msg("delta still out of band")
		return nil
	}

	m.trigger(ctx, now, delta, elapsed)
	// A renewed violation must accumulate a fresh hold window before the
	// action can fire again.
	m.episodeStart = time.Time{}
	return nil
}

func (m *Monitor) trigger(ctx context.Context, now time.Time, delta decimal.Decimal, elapsed time.Duration) {
	m.logger.Error().Str("delta", delta.String()).Dur("elapsed", elapsed).
		Str("process", m.opts.Process).
		Msg("sustained violation, terminating process")

	results, err := m.killer.TerminateByName(m.opts.Process)
	if err != nil {
		m.logger.Error().Err(err).Msg("process enumeration failed")
	}

	alert := alerting.Alert{
		At:       now,
		Currency: m.opts.Currency,
		Delta:    delta,
		Bound:    m.opts.Bound,
		Held:     elapsed,
		Process:  m.opts.Process,
		Killed:   results,
	}

	notified := false
	if m.notifier != nil {
		if err := m.notifier.Notify(ctx, alert); err != nil {
			m.logger.Error().Err(err).Msg("failed to deliver alert")
		} else {
			notified = true
		}
	}

	if m.events != nil {
		event := storage.TriggerEvent{
			TriggeredAt: now,
			Currency:    m.opts.Currency,
			Delta:       delta,
			Bound:       m.opts.Bound,
			HeldSeconds: int64(elapsed / time.Second),
			Process:     m.opts.Process,
			Notified:    notified,
		}
		for _, res := range results {
			if res.Err != nil {
				event.FailedPIDs = append(event.FailedPIDs, int64(res.PID))
			} else {
				event.KilledPIDs = append(event.KilledPIDs, int64(res.PID))
			}
		}
		if _, err := m.events.InsertTriggerEvent(ctx, event); err != nil {
			m.logger.Error().Err(err).Msg("failed to record trigger event")
		}
	}
}
