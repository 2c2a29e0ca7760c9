package usecase

import (
	"context"
	"time"

	"FeedDigest/internal/ports"
)

// Scheduler wires the cron driver with the full pipeline run.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	opts     RunOptions
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, opts RunOptions) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, opts: opts}
}

// Start registers the pipeline with the provided scheduler. A failed run is
// logged by the pipeline and the schedule keeps going.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.pipeline.logger.Info("scheduled run triggered", "at", trigger.Format(time.RFC3339))
		_, _ = s.pipeline.RunFull(ctx, s.opts)
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
