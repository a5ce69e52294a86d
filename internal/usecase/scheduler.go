package usecase

import (
	"context"
	"log/slog"
	"time"

	"BourseNews/internal/ports"
)

// Scheduler wires the interval driver with a pipeline run.
type Scheduler struct {
	driver ports.Scheduler
	run    func(ctx context.Context) error
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, run func(ctx context.Context) error, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, run: run, logger: logger}
}

// Start registers the run with the provided scheduler. A failed run is logged and the next tick still fires.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.run == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if err := s.run(ctx); err != nil && s.logger != nil {
			s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
