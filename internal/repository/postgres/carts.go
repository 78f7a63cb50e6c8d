package postgresrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixpay/internal/domain"
)

type CartRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CartRepo) With(db DB) *CartRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CartRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Put replaces the cart of a user.
func (r *CartRepo) Put(ctx context.Context, userID int64, items []domain.CartItem, now time.Time) error {
	const op = "postgresrepo.CartRepo.Put"

	if items == nil {
		items = []domain.CartItem{}
	}

	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if _, err := r.handle().Exec(ctx,
		`INSERT INTO carts(user_id, items, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at`,
		userID, b, now,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get loads the cart of a user.
//
// Returns:
//   - error: repository.ErrNotFound if the user has no cart.
func (r *CartRepo) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	const op = "postgresrepo.CartRepo.Get"

	var (
		c   = domain.Cart{UserID: userID}
		raw []byte
	)

	if err := r.handle().QueryRow(ctx,
		`SELECT items, updated_at FROM carts WHERE user_id = $1`,
		userID,
	).Scan(&raw, &c.UpdatedAt); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if err := json.Unmarshal(raw, &c.Items); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &c, nil
}

// Delete removes the cart of a user. Deleting a missing cart is not an error.
func (r *CartRepo) Delete(ctx context.Context, userID int64) error {
	const op = "postgresrepo.CartRepo.Delete"

	if _, err := r.handle().Exec(ctx, `DELETE FROM carts WHERE user_id = $1`, userID); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
