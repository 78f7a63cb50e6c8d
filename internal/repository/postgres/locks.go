package postgresrepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixpay/internal/domain"
)

// LockRepo persists scheduler leases in scheduler_locks.
type LockRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *LockRepo) With(db DB) *LockRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *LockRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// TryAcquire takes the lease of job for holder if nobody holds it or the
// current lease went stale. The check and the write are one statement, so two
// callers racing on the same row can never both win.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - job: lock name.
//   - holder: token identifying the acquiring process.
//   - now: acquisition instant, stored as last_updated.
//   - staleness: age after which a running lease may be taken over.
//
// Returns:
//   - bool: true when the lease now belongs to holder.
//   - error: if the statement fails.
func (r *LockRepo) TryAcquire(
	ctx context.Context,
	job string,
	holder uuid.UUID,
	now time.Time,
	staleness time.Duration,
) (bool, error) {
	const op = "postgresrepo.LockRepo.TryAcquire"

	var name string
	err := r.handle().QueryRow(ctx,
		`INSERT INTO scheduler_locks(job_name, running, last_updated, holder)
		 VALUES ($1, true, $2, $3)
		 ON CONFLICT (job_name) DO UPDATE
		 SET running = true, last_updated = EXCLUDED.last_updated, holder = EXCLUDED.holder
		 WHERE scheduler_locks.running = false OR scheduler_locks.last_updated < $4
		 RETURNING job_name`,
		job, now, holder, now.Add(-staleness),
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, wrapDBErr(op, err)
	}

	return true, nil
}

// Release clears the lease if holder still owns it. A holder whose lease was
// taken over after going stale releases nothing.
func (r *LockRepo) Release(ctx context.Context, job string, holder uuid.UUID, now time.Time) (bool, error) {
	const op = "postgresrepo.LockRepo.Release"

	tag, err := r.handle().Exec(ctx,
		`UPDATE scheduler_locks
		 SET running = false, last_updated = $3
		 WHERE job_name = $1 AND holder = $2 AND running = true`,
		job, holder, now,
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return tag.RowsAffected() == 1, nil
}

// Get reads a lock row.
func (r *LockRepo) Get(ctx context.Context, job string) (*domain.SchedulerLock, error) {
	const op = "postgresrepo.LockRepo.Get"

	var (
		l      domain.SchedulerLock
		holder *uuid.UUID
	)

	err := r.handle().QueryRow(ctx,
		`SELECT job_name, running, last_updated, holder FROM scheduler_locks WHERE job_name = $1`,
		job,
	).Scan(&l.JobName, &l.Running, &l.LastUpdated, &holder)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if holder != nil {
		l.Holder = *holder
	}

	return &l, nil
}
