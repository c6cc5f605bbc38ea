// Package scheduler runs background maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Job is one run of a scheduled task.
type Job func(ctx context.Context) error

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a new scheduler instance
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Every registers job to run every interval, starting when the scheduler
// starts. A run still in progress when the next one is due delays it.
func (s *Scheduler) Every(interval time.Duration, name string, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s for job %s", interval, name)
	}
	_, err := s.scheduler.Every(interval).SingletonMode().Do(func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			s.logger.Warn("Scheduled job failed", "job", name, "error", err)
			return
		}
		s.logger.Debug("Scheduled job finished", "job", name, "took", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Start begins running all scheduled tasks without blocking.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop cancels running jobs and terminates the schedule.
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}
