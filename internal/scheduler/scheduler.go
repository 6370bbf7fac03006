package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ACS-web2026/aste-backend/internal/domain"
)

// Runner runs one collection cycle.
type Runner interface {
	RunCycle(ctx context.Context, filter []string) (*domain.CycleResult, error)
}

type Config struct {
	Interval time.Duration
	// DailyAt is a local wall-clock time "15:04". It takes precedence over Interval.
	DailyAt string
	Timeout time.Duration
}

type Scheduler struct {
	runner Runner
	cfg    Config
	hour   int
	minute int
	daily  bool
	now    func() time.Time
	logger *slog.Logger
}

func NewScheduler(runner Runner, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		runner: runner,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("component", "scheduler"),
	}

	if cfg.DailyAt != "" {
		t, err := time.Parse("15:04", cfg.DailyAt)
		if err != nil {
			return nil, fmt.Errorf("parse daily_at %q: %w", cfg.DailyAt, err)
		}
		s.hour, s.minute, s.daily = t.Hour(), t.Minute(), true
	} else if cfg.Interval <= 0 {
		return nil, fmt.Errorf("schedule needs an interval or a daily time")
	}
	return s, nil
}

// Start blocks until ctx is cancelled. In interval mode the first cycle runs
// immediately; in daily mode it waits for the next occurrence of DailyAt.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.daily {
		return s.startDaily(ctx)
	}

	s.logger.Info("scheduler started", "interval", s.cfg.Interval)

	s.run(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) startDaily(ctx context.Context) error {
	s.logger.Info("scheduler started", "daily_at", s.cfg.DailyAt)

	for {
		next := nextDaily(s.now(), s.hour, s.minute)
		s.logger.Debug("next scheduled cycle", "at", next)

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	res, err := s.runner.RunCycle(ctx, nil)
	if err != nil {
		s.logger.Error("scheduled cycle failed", "error", err)
		return
	}
	s.logger.Info("scheduled cycle completed", "total", res.TotalResults, "duration", res.Duration)
}

// nextDaily returns the first instant strictly after now at hour:minute in now's location.
func nextDaily(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}
