package uow

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	postgres "github.com/kirinyoku/tixpay/internal/repository/postgres"
)

const (
	defaultAttempts = 4
	baseBackoff     = 10 * time.Millisecond
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work.
type UoW struct {
	store    *postgres.Store
	attempts int
}

func NewUoW(store *postgres.Store) *UoW {
	return &UoW{store: store, attempts: defaultAttempts}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error,
) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts runs fn inside the transaction with the given options. After a successful commit,
// it executes all after-commit hooks.
//
// A serialization failure or deadlock replays fn in a fresh transaction, so fn
// must not keep side effects outside the transaction. Hooks registered by an
// aborted attempt are discarded.
func (u *UoW) DoWithOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error,
) error {
	var err error

	for attempt := 1; ; attempt++ {
		var hooks []AfterCommit

		err = u.store.RunTx(ctx, opts, func(ctx context.Context, tx postgres.DB) error {
			return fn(ctx, tx, func(h AfterCommit) {
				hooks = append(hooks, h)
			})
		})
		if err == nil {
			for _, h := range hooks {
				h(ctx)
			}
			return nil
		}

		if !postgres.IsRetryable(err) || attempt >= u.attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(baseBackoff * time.Duration(1<<(attempt-1))):
		}
	}
}
