// Package jobs runs periodic background work such as candle aggregation.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estatetoken/internal/logger"
	"estatetoken/internal/services"

	"go.uber.org/zap"
)

// Func is one unit of scheduled work.
type Func func(ctx context.Context) error

// Scheduler runs a Func immediately and then on every tick until its context
// is cancelled. A failed run is logged and retried on the next tick.
type Scheduler struct {
	name     string
	interval time.Duration
	fn       Func
	log      *zap.SugaredLogger
}

// NewScheduler creates a Scheduler. A non-positive interval is rejected by Run.
func NewScheduler(name string, interval time.Duration, fn Func) *Scheduler {
	return &Scheduler{name: name, interval: interval, fn: fn, log: logger.Named("jobs").With("job", name)}
}

// Run blocks until ctx is done. It returns nil on a clean shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", s.name, s.interval)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Infow("job started", "interval", s.interval.String())
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("job stopped")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes the job a single time, absorbing errors and panics.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", s.name, r)
		}
		if err != nil {
			s.log.Errorw("job run failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		}
	}()
	return s.fn(ctx)
}

// Aggregation returns a Func that recomputes the default candle window.
func Aggregation(candles services.CandleServicer) Func {
	log := logger.Named("jobs").With("job", "candle-aggregation")
	return func(ctx context.Context) error {
		result, err := candles.Aggregate(ctx)
		if err != nil {
			return err
		}
		log.Infow("candles aggregated",
			"from", result.From,
			"to", result.To,
			"snapshots", result.Snapshots,
			"candles", result.Candles,
			"users", result.Users,
		)
		return nil
	}
}
