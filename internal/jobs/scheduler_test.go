package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"estatetoken/internal/logger"
	"estatetoken/internal/services"
)

func init() {
	logger.Init("test")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduler_Run(t *testing.T) {
	t.Run("runs immediately and on every tick", func(t *testing.T) {
		var runs atomic.Int32
		s := NewScheduler("counter", 10*time.Millisecond, func(context.Context) error {
			runs.Add(1)
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		waitFor(t, func() bool { return runs.Load() >= 3 })
		cancel()

		if err := <-done; err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	})

	t.Run("keeps running after errors and panics", func(t *testing.T) {
		var runs atomic.Int32
		s := NewScheduler("flaky", 10*time.Millisecond, func(context.Context) error {
			n := runs.Add(1)
			if n == 1 {
				return errors.New("database unavailable")
			}
			if n == 2 {
				panic("boom")
			}
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = s.Run(ctx) }()

		waitFor(t, func() bool { return runs.Load() >= 4 })
	})

	t.Run("returns deadline error", func(t *testing.T) {
		s := NewScheduler("noop", time.Hour, func(context.Context) error { return nil })
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		s := NewScheduler("bad", 0, func(context.Context) error { return nil })
		if err := s.Run(context.Background()); err == nil {
			t.Fatal("expected error for zero interval")
		}
	})
}

func TestScheduler_RunOnce(t *testing.T) {
	s := NewScheduler("panicky", time.Minute, func(context.Context) error { panic("bad state") })
	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

type stubCandles struct {
	calls  atomic.Int32
	result *services.AggregationResult
	err    error
}

func (s *stubCandles) Aggregate(context.Context) (*services.AggregationResult, error) {
	s.calls.Add(1)
	return s.result, s.err
}

func (s *stubCandles) AggregateWindow(context.Context, time.Time, time.Time) (*services.AggregationResult, error) {
	return s.result, s.err
}

func TestAggregation(t *testing.T) {
	t.Run("calls aggregate", func(t *testing.T) {
		stub := &stubCandles{result: &services.AggregationResult{Snapshots: 4, Candles: 1, Users: 1}}
		if err := Aggregation(stub)(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stub.calls.Load() != 1 {
			t.Errorf("expected 1 call, got %d", stub.calls.Load())
		}
	})

	t.Run("propagates error", func(t *testing.T) {
		stub := &stubCandles{err: errors.New("query failed")}
		if err := Aggregation(stub)(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	})
}
