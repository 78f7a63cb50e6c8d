package postgresrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/repository"
)

type AdminRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AdminRepo) With(db DB) *AdminRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AdminRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *AdminRepo) CreateProducer(ctx context.Context, name string, payoutAccountID *string) (int64, error) {
	const op = "postgresrepo.AdminRepo.CreateProducer"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO producers(name, payout_account_id)
		 VALUES ($1, $2)
		 RETURNING id`,
		name, payoutAccountID,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// SetPayoutAccount attaches or replaces the transfer receiver of a producer.
func (r *AdminRepo) SetPayoutAccount(ctx context.Context, producerID int64, accountID string) error {
	const op = "postgresrepo.AdminRepo.SetPayoutAccount"

	tag, err := r.handle().Exec(ctx,
		`UPDATE producers SET payout_account_id = $2 WHERE id = $1`,
		producerID, accountID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// PayoutAccount returns the payout account id of a producer, nil when the
// producer never registered one.
//
// Returns:
//   - error: repository.ErrNotFound if the producer does not exist.
func (r *AdminRepo) PayoutAccount(ctx context.Context, producerID int64) (*string, error) {
	const op = "postgresrepo.AdminRepo.PayoutAccount"

	var account *string
	if err := r.handle().QueryRow(ctx,
		`SELECT payout_account_id FROM producers WHERE id = $1`,
		producerID,
	).Scan(&account); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return account, nil
}

// CreateEvent inserts an event whose counters start at full capacity.
//
// Returns:
//   - int64: the event ID.
//   - error: repository.ErrNotFound if the producer does not exist.
func (r *AdminRepo) CreateEvent(ctx context.Context, e domain.Event) (int64, error) {
	const op = "postgresrepo.AdminRepo.CreateEvent"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO events(producer_id, title, starts_at, ends_at,
		                    full_price, half_price, full_capacity, half_capacity, full_count, half_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $7, $8)
		 RETURNING id`,
		e.ProducerID, e.Title, e.Starts, e.Ends,
		e.FullPrice, e.HalfPrice, e.FullCapacity, e.HalfCapacity,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}
