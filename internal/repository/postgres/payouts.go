package postgresrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/repository"
)

const payoutColumns = `id, producer_id, order_id, payment_id, amount, currency,
	release_date, status, transfer_id, last_error, created_at, updated_at`

type PayoutRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PayoutRepo) With(db DB) *PayoutRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PayoutRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create stores a pending payout. There is at most one payout per order, so a
// second insert for the same order is ignored and reports created=false.
func (r *PayoutRepo) Create(ctx context.Context, p domain.Payout) (bool, error) {
	const op = "postgresrepo.PayoutRepo.Create"

	tag, err := r.handle().Exec(ctx,
		`INSERT INTO payouts(`+payoutColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (order_id) DO NOTHING`,
		p.ID, p.ProducerID, p.OrderID, p.PaymentID, p.Amount, p.Currency,
		p.ReleaseDate, string(p.Status), p.TransferID, p.LastError, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return tag.RowsAffected() == 1, nil
}

// ListDue returns pending payouts whose release date is not after now.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - now: evaluation instant.
//   - limit: maximum number of payouts to return.
//
// Returns:
//   - []domain.Payout: due payouts ordered by release date.
//   - error: if the query fails.
func (r *PayoutRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Payout, error) {
	const op = "postgresrepo.PayoutRepo.ListDue"

	rows, err := r.handle().Query(ctx,
		`SELECT `+payoutColumns+` FROM payouts
		 WHERE status = 'pending' AND release_date <= $1
		 ORDER BY release_date, id
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *PayoutRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	const op = "postgresrepo.PayoutRepo.Get"

	p, err := scanPayout(r.handle().QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

func (r *PayoutRepo) GetByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payout, error) {
	const op = "postgresrepo.PayoutRepo.GetByOrder"

	p, err := scanPayout(r.handle().QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE order_id = $1`,
		orderID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

// MarkPaid records a successful transfer.
//
// Returns:
//   - error: repository.ErrStaleState if the payout is no longer pending.
func (r *PayoutRepo) MarkPaid(ctx context.Context, id uuid.UUID, transferID string, now time.Time) error {
	const op = "postgresrepo.PayoutRepo.MarkPaid"

	tag, err := r.handle().Exec(ctx,
		`UPDATE payouts
		 SET status = 'paid', transfer_id = $2, last_error = NULL, updated_at = $3
		 WHERE id = $1 AND status = 'pending'`,
		id, transferID, now,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrStaleState)
	}

	return nil
}

// MarkError records a failed settlement attempt. Payouts in error stay there
// until an operator intervenes.
//
// Returns:
//   - error: repository.ErrStaleState if the payout is no longer pending.
func (r *PayoutRepo) MarkError(ctx context.Context, id uuid.UUID, reason string, now time.Time) error {
	const op = "postgresrepo.PayoutRepo.MarkError"

	tag, err := r.handle().Exec(ctx,
		`UPDATE payouts
		 SET status = 'error', last_error = $2, updated_at = $3
		 WHERE id = $1 AND status = 'pending'`,
		id, reason, now,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrStaleState)
	}

	return nil
}

// MarkRefunded withdraws a payout that has not been settled yet.
//
// Returns:
//   - bool: false when the payout was no longer pending and nothing changed.
func (r *PayoutRepo) MarkRefunded(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	const op = "postgresrepo.PayoutRepo.MarkRefunded"

	tag, err := r.handle().Exec(ctx,
		`UPDATE payouts
		 SET status = 'refunded', updated_at = $2
		 WHERE id = $1 AND status = 'pending'`,
		id, now,
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return tag.RowsAffected() == 1, nil
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var (
		p      domain.Payout
		status string
	)

	if err := row.Scan(
		&p.ID,
		&p.ProducerID,
		&p.OrderID,
		&p.PaymentID,
		&p.Amount,
		&p.Currency,
		&p.ReleaseDate,
		&status,
		&p.TransferID,
		&p.LastError,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Status = domain.PayoutStatus(status)

	return &p, nil
}
