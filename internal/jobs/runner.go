// Package jobs runs the background work of the console: renewal reminders, discovery
// sync and cost import. Each job is a Runner driven by its own Scheduler.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/stackspend/stackspend/internal/metrics"
)

// Runner executes a single pass of a job.
type Runner interface {
	RunOnce(context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(context.Context) error

func (f RunnerFunc) RunOnce(ctx context.Context) error { return f(ctx) }

// ErrNothingToDo is returned when a job is not configured or has no work this pass.
var ErrNothingToDo = errors.New("nothing to do")

// ErrAlreadyRunning is returned by a try-lock runner when another pass is in progress.
var ErrAlreadyRunning = errors.New("job is already running")

type tryLockRunner struct {
	mu    gosync.Mutex
	inner Runner
}

// NewTryLockRunner skips a pass with ErrAlreadyRunning instead of queueing behind one
// that is still running.
func NewTryLockRunner(inner Runner) Runner {
	return &tryLockRunner{inner: inner}
}

func (r *tryLockRunner) RunOnce(ctx context.Context) error {
	if r == nil || r.inner == nil {
		return errors.New("job runner is not configured")
	}
	if !r.mu.TryLock() {
		return ErrAlreadyRunning
	}
	defer r.mu.Unlock()
	return r.inner.RunOnce(ctx)
}

type instrumentedRunner struct {
	name   string
	inner  Runner
	logger *slog.Logger
}

// Instrument records job metrics and logs the outcome of each pass.
func Instrument(name string, inner Runner, logger *slog.Logger) Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumentedRunner{name: name, inner: inner, logger: logger.With("job", name)}
}

func (r *instrumentedRunner) RunOnce(ctx context.Context) error {
	start := time.Now()
	err := r.inner.RunOnce(ctx)
	elapsed := time.Since(start)
	metrics.JobDuration.WithLabelValues(r.name).Observe(elapsed.Seconds())

	status := "success"
	switch {
	case err == nil:
		metrics.JobLastSuccessTimestamp.WithLabelValues(r.name).SetToCurrentTime()
		r.logger.Debug("job finished", "duration", elapsed)
	case isNoWork(err):
		status = "skipped"
		r.logger.Debug("job skipped", "reason", err)
	case errors.Is(err, ErrAlreadyRunning):
		status = "busy"
		r.logger.Info("job still running, pass skipped")
	case errors.Is(err, context.Canceled):
		status = "canceled"
	default:
		status = "error"
	}
	metrics.JobRunsTotal.WithLabelValues(r.name, status).Inc()
	return err
}
