package postgresrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixpay/internal/domain"
)

type QueryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *QueryRepo) With(db DB) *QueryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *QueryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetEvent retrieves an event by its ID.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - id: unique identifier of the event to retrieve.
//
// Returns:
//   - *domain.Event: the event when found.
//   - error: repository.ErrNotFound if the event is not found.
func (r *QueryRepo) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgresrepo.QueryRepo.GetEvent"

	e, err := scanEvent(r.handle().QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return e, nil
}

// ListEvents lists events ordered by start time.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - limit, offset: pagination parameters.
//
// Returns:
//   - []domain.Event: list of events, possibly empty.
//   - error: if the query fails.
func (r *QueryRepo) ListEvents(ctx context.Context, limit, offset int) ([]domain.Event, error) {
	const op = "postgresrepo.QueryRepo.ListEvents"

	rows, err := r.handle().Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY starts_at, id
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}

		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// InventoryReport puts each fare counter next to the number of tickets of that
// fare that hold or retired a unit. On a consistent ledger every line is
// balanced.
//
// Returns:
//   - *domain.InventoryReport: one line per fare class.
//   - error: repository.ErrNotFound if the event is not found.
func (r *QueryRepo) InventoryReport(ctx context.Context, eventID int64) (*domain.InventoryReport, error) {
	const op = "postgresrepo.QueryRepo.InventoryReport"

	db := r.handle()

	e, err := scanEvent(db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		eventID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	full := domain.InventoryLine{FareClass: domain.FareFull, Capacity: e.FullCapacity, Available: e.FullCount}
	half := domain.InventoryLine{FareClass: domain.FareHalf, Capacity: e.HalfCapacity, Available: e.HalfCount}

	rows, err := db.Query(ctx,
		`SELECT fare_class,
		        COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'paid' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'refunded'
		                            OR (status = 'cancelled' AND updated_at >= $2) THEN 1 ELSE 0 END), 0)
		 FROM tickets
		 WHERE event_id = $1
		 GROUP BY fare_class`,
		eventID, e.Starts,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	for rows.Next() {
		var (
			fare                   string
			pending, paid, retired int64
		)
		if err := rows.Scan(&fare, &pending, &paid, &retired); err != nil {
			return nil, wrapDBErr(op, err)
		}

		switch domain.FareClass(fare) {
		case domain.FareFull:
			full.Pending, full.Paid, full.Retired = pending, paid, retired
		case domain.FareHalf:
			half.Pending, half.Paid, half.Retired = pending, paid, retired
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &domain.InventoryReport{
		EventID: eventID,
		Lines:   []domain.InventoryLine{full, half},
	}, nil
}
