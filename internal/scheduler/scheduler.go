// Package scheduler runs the periodic jobs of the process on cron
// schedules. Cross-process exclusion is left to the jobs' leases.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one tick of a periodic job.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

type Config struct {
	Timezone string
	// Timeout bounds a single tick. Zero means no bound besides shutdown.
	Timeout time.Duration
}

func New(logger *slog.Logger, cfg Config) (*Scheduler, error) {
	const op = "scheduler.New"

	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
		),
		logger:  logger.With("component", "scheduler"),
		ctx:     ctx,
		cancel:  cancel,
		timeout: cfg.Timeout,
	}, nil
}

// Register adds a job under a cron spec ("@every 5m", "0 3 * * *").
func (s *Scheduler) Register(name, spec string, job Job) error {
	const op = "scheduler.Scheduler.Register"

	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, name, err)
	}

	s.logger.Info("job registered", "job", name, "spec", spec)

	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx := s.ctx

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := job(ctx); err != nil {
		s.logger.Error("job tick failed", "job", name, "error", err)
	}
}

// Run starts the schedule and blocks until ctx is done. Running ticks are
// cancelled and awaited before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))

	<-ctx.Done()

	s.cancel()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")

	return nil
}

// cronLogger adapts slog to cron's logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
