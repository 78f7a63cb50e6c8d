// Package lock provides a lease held in the database so that only one process
// runs a scheduled job at a time.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixpay/internal/clock"
)

const releaseTimeout = 5 * time.Second

// Store persists leases. TryAcquire must decide and write atomically.
type Store interface {
	TryAcquire(ctx context.Context, job string, holder uuid.UUID, now time.Time, staleness time.Duration) (bool, error)
	Release(ctx context.Context, job string, holder uuid.UUID, now time.Time) (bool, error)
}

type Lease struct {
	Job        string
	Holder     uuid.UUID
	AcquiredAt time.Time
}

type Locker struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
}

func New(store Store, clk clock.Clock, logger *slog.Logger) *Locker {
	if clk == nil {
		clk = clock.NewReal()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Locker{store: store, clock: clk, logger: logger}
}

// TryAcquire takes the lease of job unless another holder has it and its
// lease is younger than staleness.
//
// Returns:
//   - Lease: the acquired lease, valid only when ok is true.
//   - bool: false when the lease is already held.
//   - error: if the store fails.
func (l *Locker) TryAcquire(ctx context.Context, job string, staleness time.Duration) (Lease, bool, error) {
	const op = "service.lock.TryAcquire"

	lease := Lease{Job: job, Holder: uuid.New(), AcquiredAt: l.clock.Now()}

	ok, err := l.store.TryAcquire(ctx, job, lease.Holder, lease.AcquiredAt, staleness)
	if err != nil {
		return Lease{}, false, fmt.Errorf("%s:%w", op, err)
	}

	if !ok {
		return Lease{}, false, nil
	}

	return lease, true, nil
}

// Release clears the lease. It is a no-op when the lease was taken over.
func (l *Locker) Release(ctx context.Context, lease Lease) error {
	const op = "service.lock.Release"

	released, err := l.store.Release(ctx, lease.Job, lease.Holder, l.clock.Now())
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if !released {
		l.logger.Warn("lock was taken over before release", "job", lease.Job, "holder", lease.Holder)
	}

	return nil
}

// Run executes fn while holding the lease of job. It reports ran=false
// without calling fn when the lease is held elsewhere. The lease is released
// on every path, including a panic in fn, with a context that survives
// cancellation of ctx.
func (l *Locker) Run(ctx context.Context, job string, staleness time.Duration, fn func(ctx context.Context) error) (ran bool, err error) {
	lease, ok, err := l.TryAcquire(ctx, job, staleness)
	if err != nil || !ok {
		return false, err
	}

	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		if relErr := l.Release(relCtx, lease); relErr != nil {
			l.logger.Error("failed to release lock", "job", job, "error", relErr)
		}
	}()

	return true, fn(ctx)
}
