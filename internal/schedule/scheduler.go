package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// CheckRunner is the piece of the Checker the scheduler drives.
type CheckRunner interface {
	CheckAll(ctx context.Context) (*Stats, error)
}

// Scheduler triggers a full check run on a fixed interval. The first
// run fires immediately so a fresh deployment does not sit idle for a
// whole interval.
type Scheduler struct {
	cron     *cron.Cron
	checker  CheckRunner
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(checker CheckRunner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}

	return &Scheduler{
		cron:     cron.New(),
		checker:  checker,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	spec := "@every " + s.interval.String()
	if _, err := s.cron.AddFunc(spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule price checks: %w", err)
	}

	s.logger.Info("scheduler started", "interval", s.interval)

	go s.run(ctx)

	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if _, err := s.checker.CheckAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("scheduled check failed", "error", err)
	}
}
