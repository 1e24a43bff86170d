// Package scheduler fires sync runs on a cron cadence.
//
// Firing behavior:
//   - coalescing: a fire that lands while a run is still in flight is
//     dropped (the job reports it was not started), never queued
//   - misfire grace: if the process was down when a fire was due, the
//     fire still executes once at startup provided it fell within the
//     grace window; older misses are skipped for good
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job attempts one scheduled run and reports whether it actually started.
// A false return means the fire was coalesced away.
type Job func(ctx context.Context) bool

// Config holds scheduler settings.
type Config struct {
	Expression string         // 5-field cron: minute hour dom month dow
	Location   *time.Location // zone the expression is evaluated in
	Grace      time.Duration  // misfire grace window (0 disables)
}

// Scheduler drives a Job from a cron schedule.
type Scheduler struct {
	cfg      Config
	schedule cron.Schedule
	job      Job
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// parser accepts the classic 5-field form.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseExpression validates a cron expression without building a scheduler.
func ParseExpression(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// New creates a Scheduler. The expression is validated here so a bad
// config fails at startup, not at first fire.
func New(cfg Config, job Job, logger *slog.Logger) (*Scheduler, error) {
	sched, err := ParseExpression(cfg.Expression)
	if err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg,
		schedule: sched,
		job:      job,
		logger:   logger,
	}, nil
}

// Start begins the firing loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("scheduler started",
		"cron", s.cfg.Expression,
		"zone", s.cfg.Location.String(),
		"grace", s.cfg.Grace,
	)
	return nil
}

// Stop shuts the scheduler down, waiting for an in-flight fire to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// A fire missed while the process was down still runs once if it fell
	// within the grace window.
	if missedWithinGrace(s.schedule, time.Now().In(s.cfg.Location), s.cfg.Grace) {
		s.logger.Info("missed fire within grace window, running now")
		s.fire()
	}

	for {
		now := time.Now().In(s.cfg.Location)
		next := s.schedule.Next(now)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire()
		}
	}
}

// fire runs the job synchronously. Any fire time that passes while the job
// is still executing is dropped when the loop recomputes the next fire.
func (s *Scheduler) fire() {
	if started := s.job(s.ctx); !started {
		s.logger.Info("scheduled fire coalesced, sync already running")
	}
}

// missedWithinGrace reports whether a scheduled fire fell inside the last
// grace window ending at now.
func missedWithinGrace(sched cron.Schedule, now time.Time, grace time.Duration) bool {
	if grace <= 0 {
		return false
	}
	missed := sched.Next(now.Add(-grace))
	return !missed.After(now)
}
