package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func result(err error) Runner {
	return RunnerFunc(func(context.Context) error { return err })
}

func TestSequence(t *testing.T) {
	t.Parallel()

	hard := errors.New("postgres: connection refused")

	tests := []struct {
		name string
		seq  Sequence
		want error
	}{
		{name: "hard error wins", seq: Sequence{result(nil), result(hard), result(ErrAlreadyRunning)}, want: hard},
		{name: "work beats busy", seq: Sequence{result(nil), result(ErrAlreadyRunning)}},
		{name: "busy beats idle", seq: Sequence{result(ErrAlreadyRunning), result(ErrNothingToDo)}, want: ErrAlreadyRunning},
		{name: "wrapped idle", seq: Sequence{result(ErrNothingToDo), result(fmt.Errorf("renewals: %w", ErrNothingToDo))}, want: ErrNothingToDo},
		{name: "idle joined with a failure is a failure", seq: Sequence{result(nil), result(errors.Join(ErrNothingToDo, hard))}, want: hard},
		{name: "nil runners are skipped", seq: Sequence{nil, result(nil)}},
		{name: "empty", want: ErrNothingToDo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.seq.RunOnce(context.Background())
			if tt.want == nil {
				if err != nil {
					t.Fatalf("RunOnce() err = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("RunOnce() err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSequenceStopsWhenCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ran := 0
	seq := Sequence{
		RunnerFunc(func(context.Context) error { ran++; cancel(); return nil }),
		RunnerFunc(func(context.Context) error { ran++; return nil }),
	}
	if err := seq.RunOnce(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunOnce() err = %v, want context.Canceled", err)
	}
	if ran != 1 {
		t.Fatalf("ran %d runners, want 1", ran)
	}
}

func TestTryLockRunnerSkipsOverlappingPass(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	runner := NewTryLockRunner(RunnerFunc(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))

	done := make(chan error, 1)
	go func() { done <- runner.RunOnce(context.Background()) }()
	<-started

	if err := runner.RunOnce(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("overlapping RunOnce() err = %v, want ErrAlreadyRunning", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first RunOnce() err = %v", err)
	}
}

func TestFailureBackoffDelay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		failures int
		want     int
	}{{0, 0}, {1, 1}, {2, 2}, {3, 4}, {4, 8}, {6, 10}}
	for _, tc := range cases {
		got := failureBackoffDelay(1, tc.failures, 10)
		if int(got) != tc.want {
			t.Fatalf("failureBackoffDelay(1, %d, 10) = %d, want %d", tc.failures, got, tc.want)
		}
	}
}
