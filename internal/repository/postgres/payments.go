package postgresrepo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepo records which processor payments were already ingested.
type PaymentRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PaymentRepo) With(db DB) *PaymentRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PaymentRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// MarkProcessed claims a payment id. It reports false when the payment was
// already claimed, which makes redelivered notifications a no-op as long as
// the claim happens in the same transaction as the ticket writes.
func (r *PaymentRepo) MarkProcessed(ctx context.Context, paymentID, status string, now time.Time) (bool, error) {
	const op = "postgresrepo.PaymentRepo.MarkProcessed"

	tag, err := r.handle().Exec(ctx,
		`INSERT INTO processed_payments(payment_id, status, processed_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (payment_id) DO NOTHING`,
		paymentID, status, now,
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return tag.RowsAffected() == 1, nil
}
