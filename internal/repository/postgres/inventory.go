package postgresrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/repository"
)

// InventoryRepo owns the per-event fare counters. Every write is a single
// conditional statement so concurrent callers never drive a counter below zero.
type InventoryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *InventoryRepo) With(db DB) *InventoryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *InventoryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Decrement takes qty units of the given fare class from an event.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - eventID: event whose counter is decremented.
//   - fare: fare class selecting the counter.
//   - qty: number of units, must be positive.
//
// Returns:
//   - error: repository.ErrInsufficientStock if fewer than qty units remain.
//   - error: repository.ErrNotFound if the event does not exist.
func (r *InventoryRepo) Decrement(ctx context.Context, eventID int64, fare domain.FareClass, qty int64) error {
	const op = "postgresrepo.InventoryRepo.Decrement"

	col, err := fareColumn(fare)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if qty <= 0 {
		return fmt.Errorf("%s: quantity must be positive", op)
	}

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE events SET `+col+` = `+col+` - $2
		 WHERE id = $1 AND `+col+` >= $2`,
		eventID, qty,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`,
		eventID,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}

	if !exists {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return fmt.Errorf("%s:%w", op, repository.ErrInsufficientStock)
}

// Increment returns qty units of the given fare class to an event.
//
// Returns:
//   - error: repository.ErrNotFound if the event does not exist.
func (r *InventoryRepo) Increment(ctx context.Context, eventID int64, fare domain.FareClass, qty int64) error {
	const op = "postgresrepo.InventoryRepo.Increment"

	col, err := fareColumn(fare)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if qty <= 0 {
		return nil
	}

	tag, err := r.handle().Exec(ctx,
		`UPDATE events SET `+col+` = `+col+` + $2 WHERE id = $1`,
		eventID, qty,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// Counts reads the current counters of an event.
func (r *InventoryRepo) Counts(ctx context.Context, eventID int64) (*domain.EventCounts, error) {
	const op = "postgresrepo.InventoryRepo.Counts"

	ec := domain.EventCounts{EventID: eventID}
	err := r.handle().QueryRow(ctx,
		`SELECT full_count, half_count FROM events WHERE id = $1`,
		eventID,
	).Scan(&ec.FullCount, &ec.HalfCount)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &ec, nil
}
