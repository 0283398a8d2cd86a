package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/energy-demand-features/internal/energy"
)

// Builder rebuilds and caches a dataset.
type Builder interface {
	BuildAndStore(ctx context.Context, req energy.Request) (*energy.Dataset, error)
}

// Scheduler periodically rebuilds datasets for configured requests.
type Scheduler struct {
	scheduler *gocron.Scheduler
	builder   Builder
	requests  []energy.Request
	interval  time.Duration
	timeout   time.Duration
	deferred  bool
	logger    *zap.SugaredLogger
}

// New creates a new Scheduler.
func New(requests []energy.Request, interval time.Duration, builder Builder, logger *zap.SugaredLogger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		builder:   builder,
		requests:  requests,
		interval:  interval,
		timeout:   30 * time.Minute,
		logger:    logger,
	}
}

// DeferFirstRun makes the first run wait for one full interval instead of
// starting immediately.
func (s *Scheduler) DeferFirstRun() *Scheduler {
	s.deferred = true
	return s
}

// Start schedules the periodic job and starts the underlying scheduler. Runs
// never overlap, and requests within a run are built one after another.
func (s *Scheduler) Start() error {
	if len(s.requests) == 0 {
		s.logger.Info("scheduler: no requests configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 24 * 60
	}

	job := s.scheduler.Every(minutes).Minutes().SingletonMode()
	if s.deferred {
		job = job.WaitForSchedule()
	}
	_, err := job.Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce rebuilds every configured request sequentially.
func (s *Scheduler) RunOnce() {
	s.logger.Info("scheduler: running dataset refresh job")

	for _, req := range s.requests {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if _, err := s.builder.BuildAndStore(ctx, req); err != nil {
			s.logger.Errorw("scheduler: refresh failed", "key", req.Key(), "error", err)
		}
		cancel()
	}

	s.logger.Info("scheduler: completed dataset refresh job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
