// Package expiry reclaims inventory held by reservations that were never paid.
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixpay/internal/clock"
	"github.com/kirinyoku/tixpay/internal/metrics"
	"github.com/kirinyoku/tixpay/internal/service/reservation"
)

const JobName = "expiry-sweep"

type Locker interface {
	Run(ctx context.Context, job string, staleness time.Duration, fn func(ctx context.Context) error) (bool, error)
}

type Candidates interface {
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type Expirer interface {
	ExpireBatch(ctx context.Context, ticketIDs []uuid.UUID, now time.Time) (reservation.ExpiryResult, error)
}

type Config struct {
	Staleness time.Duration
	BatchSize int
}

type Job struct {
	locker     Locker
	candidates Candidates
	expirer    Expirer
	clock      clock.Clock
	logger     *slog.Logger
	cfg        Config
}

type SweepResult struct {
	Skipped    bool
	Candidates int
	Expired    int
	Restored   map[reservation.Restore]int64
}

func New(locker Locker, candidates Candidates, expirer Expirer, clk clock.Clock, logger *slog.Logger, cfg Config) *Job {
	if cfg.Staleness <= 0 {
		cfg.Staleness = 5 * time.Minute
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}

	if clk == nil {
		clk = clock.NewReal()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Job{
		locker:     locker,
		candidates: candidates,
		expirer:    expirer,
		clock:      clk,
		logger:     logger.With("job", JobName),
		cfg:        cfg,
	}
}

// Sweep runs one tick: under the expiry-sweep lease it expires every pending
// ticket whose hold lapsed and restores their units in a single transaction.
// A failure leaves every ticket untouched for the next tick.
//
// Returns:
//   - SweepResult: Skipped is set when another process held the lease.
//   - error: if listing or the batch transaction failed.
func (j *Job) Sweep(ctx context.Context) (SweepResult, error) {
	const op = "service.expiry.Sweep"

	var res SweepResult
	start := time.Now()

	ran, err := j.locker.Run(ctx, JobName, j.cfg.Staleness, func(ctx context.Context) error {
		now := j.clock.Now()

		ids, err := j.candidates.ListExpirable(ctx, now, j.cfg.BatchSize)
		if err != nil {
			return err
		}

		res.Candidates = len(ids)
		if len(ids) == 0 {
			return nil
		}

		out, err := j.expirer.ExpireBatch(ctx, ids, now)
		if err != nil {
			return err
		}

		res.Expired = out.Expired
		res.Restored = out.Restored

		return nil
	})

	switch {
	case err != nil:
		metrics.JobRun(JobName, "error", time.Since(start))
		j.logger.Error("expiry sweep aborted", "candidates", res.Candidates, "error", err)
		return SweepResult{Candidates: res.Candidates}, fmt.Errorf("%s:%w", op, err)
	case !ran:
		metrics.JobRun(JobName, "skipped", 0)
		j.logger.Debug("expiry sweep skipped, lock held elsewhere")
		return SweepResult{Skipped: true}, nil
	}

	metrics.JobRun(JobName, "ok", time.Since(start))
	metrics.TicketsExpired(res.Expired)

	if res.Expired > 0 {
		j.logger.Info("expired tickets", "candidates", res.Candidates, "expired", res.Expired)
	}

	return res, nil
}

// Tick adapts Sweep to the scheduler.
func (j *Job) Tick(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}
