package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSchedulerRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	runner := RunnerFunc(func(context.Context) error {
		if calls.Add(1) >= 3 {
			cancel()
		}
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		(&Scheduler{Name: "test", Runner: runner, Interval: time.Millisecond}).Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not stop after cancel")
	}
	if got := calls.Load(); got < 3 {
		t.Fatalf("runner called %d times, want at least 3", got)
	}
}

func TestSchedulerKeepsRunningAfterFailures(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := RunnerFunc(func(context.Context) error {
		if calls.Add(1) >= 3 {
			cancel()
		}
		return errors.New("boom")
	})

	s := &Scheduler{Name: "flaky", Runner: runner, Interval: time.Millisecond, BackoffBase: time.Millisecond, BackoffMax: 2 * time.Millisecond}
	s.Run(ctx)
	if got := calls.Load(); got < 3 {
		t.Fatalf("runner called %d times, want at least 3", got)
	}
}

func TestSchedulerWithoutIntervalReturns(t *testing.T) {
	called := false
	(&Scheduler{Runner: RunnerFunc(func(context.Context) error { called = true; return nil })}).Run(context.Background())
	if called {
		t.Fatalf("scheduler with zero interval ran the job")
	}
}
