package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunInvokesTickRepeatedly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context) error {
			if ticks.Add(1) >= 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}

	if got := ticks.Load(); got < 3 {
		t.Fatalf("got %d ticks, want at least 3", got)
	}
}

func TestRunContinuesAfterTickError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	s := New(Options{Interval: 5 * time.Millisecond}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context) error {
			if ticks.Add(1) >= 2 {
				cancel()
				return nil
			}
			return errors.New("fetch failed")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler stopped ticking after an error")
	}

	if got := ticks.Load(); got < 2 {
		t.Fatalf("got %d ticks, want at least 2", got)
	}
}

func TestRunHonoursStartupDelayCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	if err := s.Run(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New should panic for a non-positive interval")
		}
	}()
	New(Options{}, zerolog.Nop())
}
