// Package payout settles due producer payouts through the transfer API.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixpay/internal/clock"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/gateway/processor"
	"github.com/kirinyoku/tixpay/internal/metrics"
	"github.com/kirinyoku/tixpay/internal/repository"
)

const JobName = "payout-settlement"

var ErrNoPayoutAccount = errors.New("producer has no payout account")

type Locker interface {
	Run(ctx context.Context, job string, staleness time.Duration, fn func(ctx context.Context) error) (bool, error)
}

type Payouts interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Payout, error)
	MarkPaid(ctx context.Context, id uuid.UUID, transferID string, now time.Time) error
	MarkError(ctx context.Context, id uuid.UUID, reason string, now time.Time) error
}

type Accounts interface {
	PayoutAccount(ctx context.Context, producerID int64) (*string, error)
}

type Transferrer interface {
	CreateTransfer(ctx context.Context, req processor.TransferRequest) (*processor.TransferResult, error)
}

type Config struct {
	Staleness   time.Duration
	BatchSize   int
	Description string
}

type Job struct {
	locker    Locker
	payouts   Payouts
	accounts  Accounts
	transfers Transferrer
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config
}

type SettleResult struct {
	Skipped bool
	Due     int
	Paid    int
	Failed  int
}

func New(locker Locker, payouts Payouts, accounts Accounts, transfers Transferrer, clk clock.Clock, logger *slog.Logger, cfg Config) *Job {
	if cfg.Staleness <= 0 {
		cfg.Staleness = 5 * time.Minute
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}

	if cfg.Description == "" {
		cfg.Description = "tixpay settlement"
	}

	if clk == nil {
		clk = clock.NewReal()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Job{
		locker:    locker,
		payouts:   payouts,
		accounts:  accounts,
		transfers: transfers,
		clock:     clk,
		logger:    logger.With("job", JobName),
		cfg:       cfg,
	}
}

// Settle runs one tick: under the payout-settlement lease it transfers every
// due payout. Payouts are settled one by one; a failed transfer marks only
// that payout as error and the tick moves on.
//
// Returns:
//   - SettleResult: Skipped is set when another process held the lease.
//   - error: if listing due payouts failed.
func (j *Job) Settle(ctx context.Context) (SettleResult, error) {
	const op = "service.payout.Settle"

	var res SettleResult
	start := time.Now()

	ran, err := j.locker.Run(ctx, JobName, j.cfg.Staleness, func(ctx context.Context) error {
		due, err := j.payouts.ListDue(ctx, j.clock.Now(), j.cfg.BatchSize)
		if err != nil {
			return err
		}

		res.Due = len(due)
		for _, p := range due {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if j.settleOne(ctx, p) {
				res.Paid++
			} else {
				res.Failed++
			}
		}

		return nil
	})

	switch {
	case err != nil:
		metrics.JobRun(JobName, "error", time.Since(start))
		j.logger.Error("payout settlement aborted", "paid", res.Paid, "failed", res.Failed, "error", err)
		return res, fmt.Errorf("%s:%w", op, err)
	case !ran:
		metrics.JobRun(JobName, "skipped", 0)
		j.logger.Debug("payout settlement skipped, lock held elsewhere")
		return SettleResult{Skipped: true}, nil
	}

	metrics.JobRun(JobName, "ok", time.Since(start))
	j.logger.Info("payout settlement finished", "due", res.Due, "paid", res.Paid, "failed", res.Failed)

	return res, nil
}

// settleOne pays a single payout and records the outcome. It reports whether
// the payout ended up paid.
func (j *Job) settleOne(ctx context.Context, p domain.Payout) bool {
	log := j.logger.With("payout_id", p.ID, "order_id", p.OrderID, "producer_id", p.ProducerID)

	account, err := j.accounts.PayoutAccount(ctx, p.ProducerID)
	switch {
	case errors.Is(err, repository.ErrNotFound) || (err == nil && (account == nil || *account == "")):
		j.fail(ctx, log, p, ErrNoPayoutAccount.Error())
		return false
	case err != nil:
		j.fail(ctx, log, p, "payout account lookup: "+err.Error())
		return false
	}

	res, err := j.transfers.CreateTransfer(ctx, processor.TransferRequest{
		ReceiverAccountID: *account,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Description:       j.cfg.Description,
		IdempotencyKey:    IdempotencyKey(p.OrderID),
	})
	if err != nil {
		if ctx.Err() != nil {
			// Cut off by the tick deadline; the next tick replays it.
			log.Warn("payout interrupted, left pending", "error", err)
			metrics.Payout("interrupted")
			return false
		}
		j.fail(ctx, log, p, err.Error())
		return false
	}

	if err := j.payouts.MarkPaid(context.WithoutCancel(ctx), p.ID, res.TransferID, j.clock.Now()); err != nil {
		// Money moved but the row is still pending. A replay reuses the
		// same idempotency key.
		log.Error("transfer succeeded but payout not marked paid", "transfer_id", res.TransferID, "error", err)
		metrics.Payout("unrecorded")
		return false
	}

	metrics.Payout("paid")
	log.Info("payout paid", "transfer_id", res.TransferID, "amount", p.Amount.StringFixed(2))

	return true
}

func (j *Job) fail(ctx context.Context, log *slog.Logger, p domain.Payout, reason string) {
	metrics.Payout("error")
	log.Warn("payout failed", "reason", reason)

	if err := j.payouts.MarkError(ctx, p.ID, reason, j.clock.Now()); err != nil {
		log.Error("failed to record payout error", "error", err)
	}
}

// IdempotencyKey is the transfer key of an order's payout. It is stable so a
// replayed transfer is recognized by the processor.
func IdempotencyKey(orderID uuid.UUID) string {
	return "payout-" + orderID.String()
}

// Tick adapts Settle to the scheduler.
func (j *Job) Tick(ctx context.Context) error {
	_, err := j.Settle(ctx)
	return err
}
