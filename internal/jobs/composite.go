package jobs

import (
	"context"
	"errors"
)

// Sequence runs each runner once, in order. The pass fails if any runner failed, succeeds
// if any runner did work, and otherwise reports ErrAlreadyRunning when some runner was busy
// or ErrNothingToDo when all were idle.
type Sequence []Runner

func (s Sequence) RunOnce(ctx context.Context) error {
	var (
		failed []error
		worked bool
		busy   bool
	)
	for _, r := range s {
		if r == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		switch err := r.RunOnce(ctx); {
		case err == nil:
			worked = true
		case errors.Is(err, ErrAlreadyRunning):
			busy = true
		case isNoWork(err):
		default:
			failed = append(failed, err)
		}
	}
	switch {
	case len(failed) > 0:
		return errors.Join(failed...)
	case worked:
		return nil
	case busy:
		return ErrAlreadyRunning
	}
	return ErrNothingToDo
}

// isNoWork reports whether err, followed through wrapping and joins, bottoms out only in
// ErrNothingToDo. A join of "nothing to do" and a real failure is a failure.
func isNoWork(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		children := joined.Unwrap()
		for _, child := range children {
			if !isNoWork(child) {
				return false
			}
		}
		return len(children) > 0
	}
	if err == ErrNothingToDo {
		return true
	}
	return isNoWork(errors.Unwrap(err))
}
