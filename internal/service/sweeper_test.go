package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingExpirer struct {
	calls int64
	err   error
}

func (e *countingExpirer) ExpireReservations(context.Context) (int64, error) {
	atomic.AddInt64(&e.calls, 1)
	return 0, e.err
}

type panickingExpirer struct{}

func (panickingExpirer) ExpireReservations(context.Context) (int64, error) {
	panic("boom")
}

func TestSweeperTicksUntilCancelled(t *testing.T) {
	exp := &countingExpirer{}
	s := NewSweeper(exp, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if n := atomic.LoadInt64(&exp.calls); n < 2 {
		t.Errorf("Expected at least 2 sweeps, got %d", n)
	}
}

func TestSweeperKeepsRunningAfterErrors(t *testing.T) {
	exp := &countingExpirer{err: errors.New("db gone")}
	s := NewSweeper(exp, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if n := atomic.LoadInt64(&exp.calls); n < 2 {
		t.Errorf("Expected the loop to survive errors, got %d sweeps", n)
	}
}

func TestSweepRecoversFromPanic(t *testing.T) {
	s := NewSweeper(panickingExpirer{}, time.Minute)
	// Must not propagate the panic.
	s.sweep(context.Background())
}

func TestNewSweeperDefaultsInterval(t *testing.T) {
	s := NewSweeper(&countingExpirer{}, 0)
	if s.interval != 5*time.Minute {
		t.Errorf("Expected 5m default, got %s", s.interval)
	}
}
