package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestEnv(ctx context.Context, cancel context.CancelFunc) *Env {
	return &Env{
		DispatchChannel: make(chan func(*State) error, 10),
		Context:         ctx,
		Cancel: func(err error) {
			cancel()
		},
	}
}

func TestDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv(ctx, cancel)
	state := &State{
		Env: env,
	}

	var called bool

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case f := <-env.DispatchChannel:
			if err := f(state); err != nil {
				t.Errorf("Dispatch error: %v", err)
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("Timed out waiting for dispatched function")
		}
	}()

	env.Dispatch(func(s *State) error {
		called = true
		return nil
	})

	<-done

	if !called {
		t.Fatal("Dispatch function was not executed")
	}
}

func TestDispatchAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	env := newTestEnv(ctx, cancel)
	env.DispatchChannel = make(chan func(*State) error) // nobody is reading
	cancel()

	finished := make(chan struct{})
	go func() {
		env.Dispatch(func(s *State) error { return nil })
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a stopped loop")
	}
}

func TestDispatchWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(ctx, cancel)
	state := &State{Env: env}

	go func() {
		f := <-env.DispatchChannel
		_ = f(state)
	}()

	res, err := env.DispatchWait(func(s *State) (any, error) {
		return 42, errors.New("boom")
	})
	if res != 42 || err == nil || err.Error() != "boom" {
		t.Fatalf("unexpected result %v, %v", res, err)
	}
}

func TestScheduleTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv(ctx, cancel)
	state := &State{
		Env: env,
	}

	var taskCalled bool

	env.ScheduleTask(func(s *State) error {
		taskCalled = true
		return nil
	}, 50*time.Millisecond)

	select {
	case f := <-env.DispatchChannel:
		if err := f(state); err != nil {
			t.Errorf("Scheduled task error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("No task was scheduled")
	}

	if !taskCalled {
		t.Fatal("Scheduled task was not executed")
	}
}

func TestRepeatTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv(ctx, cancel)
	state := &State{
		Env: env,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	var count int

	env.RepeatTask(func(s *State) error {
		count++
		if count <= 3 {
			wg.Done()
		}
		if count == 3 {
			cancel()
		}
		return nil
	}, 20*time.Millisecond)

	// Process the repeat tasks until context is cancelled.
loop:
	for {
		select {
		case f := <-env.DispatchChannel:
			err := f(state)
			if err != nil {
				t.Fatalf("RepeatTask error: %v", err)
			}
		case <-ctx.Done():
			break loop
		case <-time.After(500 * time.Millisecond):
			t.Fatal("Timed out waiting for RepeatTask to execute")
		}
	}
	wg.Wait()
	if count < 3 {
		t.Fatalf("Expected at least 3 executions, got %d", count)
	}
}
