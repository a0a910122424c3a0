// Package scheduler runs the periodic server jobs: expiring games whose turn
// deadline passed and keeping the daily puzzle horizon filled.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/park285/ballknower/internal/obslog"
)

// Sweeper finishes overdue games and reports how many it ended.
type Sweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// PuzzleGenerator fills puzzles for the days after from.
type PuzzleGenerator interface {
	Generate(ctx context.Context, from time.Time, days int) (int, error)
}

type Config struct {
	SweepInterval time.Duration
	// DailyHorizon is how many days ahead puzzles are kept.
	DailyHorizon int
	// The generator runs daily at DailyHour:DailyMinute, America/New_York.
	DailyHour, DailyMinute uint
}

type Scheduler struct {
	cron gocron.Scheduler
	ctx  context.Context
	stop context.CancelFunc
}

// New registers the jobs. Either dependency may be nil to skip its job. The
// generator also runs once immediately so a fresh deployment has today's
// puzzle horizon.
func New(cfg Config, sweeper Sweeper, gen PuzzleGenerator) (*Scheduler, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	cron, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: cron, ctx: ctx, stop: cancel}

	if sweeper != nil {
		interval := cfg.SweepInterval
		if interval <= 0 {
			interval = 5 * time.Second
		}
		if _, err := cron.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(s.sweep, sweeper),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			cancel()
			return nil, err
		}
	}
	if gen != nil && cfg.DailyHorizon > 0 {
		if _, err := cron.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(cfg.DailyHour, cfg.DailyMinute, 0))),
			gocron.NewTask(s.generate, gen, cfg.DailyHorizon),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Shutdown stops the jobs and waits for running ones.
func (s *Scheduler) Shutdown() error {
	s.stop()
	err := s.cron.Shutdown()
	if errors.Is(err, gocron.ErrStopSchedulerTimedOut) {
		obslog.L().Warn("scheduler_shutdown_timeout")
	}
	return err
}

func (s *Scheduler) sweep(sw Sweeper) {
	n, err := sw.ExpireOverdue(s.ctx)
	if err != nil {
		obslog.L().Warn("game_sweep_failed", zap.Error(err))
		return
	}
	if n > 0 {
		obslog.L().Info("game_sweep", zap.Int("ended", n))
	}
}

func (s *Scheduler) generate(gen PuzzleGenerator, days int) {
	if _, err := gen.Generate(s.ctx, time.Now(), days); err != nil {
		obslog.L().Warn("daily_generate_failed", zap.Error(err))
	}
}
