package postgresrepo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/repository"
)

// OrderRepo reads orders. An order has no row of its own: it is the set of
// tickets sharing an order id, plus the payout created when it was paid.
type OrderRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *OrderRepo) With(db DB) *OrderRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OrderRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Get returns the tickets of an order.
//
// Returns:
//   - error: repository.ErrNotFound if no ticket carries the order id.
func (r *OrderRepo) Get(ctx context.Context, orderID uuid.UUID) (*domain.OrderWithTickets, error) {
	const op = "postgresrepo.OrderRepo.Get"

	tickets, err := (&TicketRepo{pool: r.pool, db: r.db}).ListByOrder(ctx, orderID, false)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if len(tickets) == 0 {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return &domain.OrderWithTickets{OrderID: orderID, Tickets: tickets}, nil
}
