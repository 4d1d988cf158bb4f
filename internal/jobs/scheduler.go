package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler runs a job immediately and then once per Interval. Consecutive failures
// push the next pass out by an exponential backoff capped at BackoffMax.
type Scheduler struct {
	Name        string
	Runner      Runner
	Interval    time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Logger      *slog.Logger
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.Runner == nil || s.Interval <= 0 {
		return
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("job", s.Name)

	failures := 0
	runOnce := func(initial bool) {
		err := s.Runner.RunOnce(ctx)
		switch {
		case err == nil, isNoWork(err), errors.Is(err, ErrAlreadyRunning):
			failures = 0
		case ctx.Err() != nil:
		default:
			failures++
			msg := "scheduled job failed"
			if initial {
				msg = "initial job run failed"
			}
			logger.Error(msg, "err", err, "consecutive_failures", failures)
		}
	}

	runOnce(true)

	timer := time.NewTimer(s.nextDelay(failures))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			runOnce(false)
			timer.Reset(s.nextDelay(failures))
		}
	}
}

func (s *Scheduler) nextDelay(failures int) time.Duration {
	return s.Interval + failureBackoffDelay(s.BackoffBase, failures, s.BackoffMax)
}

func failureBackoffDelay(base time.Duration, failures int, max time.Duration) time.Duration {
	if failures <= 0 {
		return 0
	}
	if base <= 0 {
		return 0
	}

	delay := base
	for i := 1; i < failures; i++ {
		if delay > max/2 && max > 0 {
			delay = max
			break
		}
		delay *= 2
	}

	if max > 0 && delay > max {
		return max
	}
	return delay
}
