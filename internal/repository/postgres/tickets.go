package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/repository"
)

const ticketColumns = `id, user_id, event_id, order_id, payment_id, fare_class,
	unit_price, status, expires_at, created_at, updated_at`

type TicketRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// InsertBatch stores new tickets in a single round trip.
//
// Returns:
//   - error: repository.ErrConflict if a ticket id already exists.
//   - error: repository.ErrNotFound if an event does not exist.
func (r *TicketRepo) InsertBatch(ctx context.Context, tickets []domain.Ticket) error {
	const op = "postgresrepo.TicketRepo.InsertBatch"

	if len(tickets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(
			`INSERT INTO tickets(`+ticketColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			t.ID, t.UserID, t.EventID, t.OrderID, t.PaymentID, string(t.FareClass),
			t.UnitPrice, string(t.Status), t.ExpiresAt, t.CreatedAt, t.UpdatedAt,
		)
	}

	if err := r.handle().SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// GetForUpdate loads a ticket and locks its row for the current transaction.
func (r *TicketRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.GetForUpdate"

	t, err := scanTicket(r.handle().QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

// ListByOrder returns the tickets of one reservation ordered by creation.
// With lock set, the rows stay locked until the transaction ends.
func (r *TicketRepo) ListByOrder(ctx context.Context, orderID uuid.UUID, lock bool) ([]domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.ListByOrder"

	sql := `SELECT ` + ticketColumns + ` FROM tickets WHERE order_id = $1 ORDER BY created_at, id`
	if lock {
		sql += ` FOR UPDATE`
	}

	out, err := r.list(ctx, sql, orderID)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// ListByIDs returns the requested tickets locked for update.
func (r *TicketRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.ListByIDs"

	out, err := r.list(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		ids,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// ListExpirable returns ids of pending tickets whose hold lapsed before now,
// oldest first.
func (r *TicketRepo) ListExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const op = "postgresrepo.TicketRepo.ListExpirable"

	rows, err := r.handle().Query(ctx,
		`SELECT id FROM tickets
		 WHERE status = 'pending' AND expires_at < $1
		 ORDER BY expires_at
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBErr(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}

// ExpireIfDue moves one ticket from pending to expired when its hold lapsed
// before now, and reports which counter the caller must restore.
//
// Returns:
//   - error: repository.ErrStaleState if the ticket is not pending or not yet due.
func (r *TicketRepo) ExpireIfDue(ctx context.Context, id uuid.UUID, now time.Time) (int64, domain.FareClass, error) {
	const op = "postgresrepo.TicketRepo.ExpireIfDue"

	var (
		eventID int64
		fare    string
	)

	err := r.handle().QueryRow(ctx,
		`UPDATE tickets
		 SET status = 'expired', expires_at = NULL, updated_at = $2
		 WHERE id = $1 AND status = 'pending' AND expires_at < $2
		 RETURNING event_id, fare_class`,
		id, now,
	).Scan(&eventID, &fare)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", fmt.Errorf("%s:%w", op, repository.ErrStaleState)
		}
		return 0, "", wrapDBErr(op, err)
	}

	return eventID, domain.FareClass(fare), nil
}

// Transition persists a state change computed by the domain model. The write
// only applies while the stored status still equals from.
//
// Returns:
//   - error: repository.ErrStaleState if the ticket changed concurrently.
func (r *TicketRepo) Transition(ctx context.Context, t domain.Ticket, from domain.TicketStatus) error {
	const op = "postgresrepo.TicketRepo.Transition"

	tag, err := r.handle().Exec(ctx,
		`UPDATE tickets
		 SET status = $2, payment_id = $3, expires_at = $4, updated_at = $5
		 WHERE id = $1 AND status = $6`,
		t.ID, string(t.Status), t.PaymentID, t.ExpiresAt, t.UpdatedAt, string(from),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrStaleState)
	}

	return nil
}

// CountByPayment reports how many tickets were issued for a payment.
func (r *TicketRepo) CountByPayment(ctx context.Context, paymentID string) (int64, error) {
	const op = "postgresrepo.TicketRepo.CountByPayment"

	var n int64
	if err := r.handle().QueryRow(ctx,
		`SELECT count(*) FROM tickets WHERE payment_id = $1`,
		paymentID,
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

func (r *TicketRepo) list(ctx context.Context, sql string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.handle().Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}

	return out, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t      domain.Ticket
		fare   string
		status string
	)

	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.EventID,
		&t.OrderID,
		&t.PaymentID,
		&fare,
		&t.UnitPrice,
		&status,
		&t.ExpiresAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.FareClass = domain.FareClass(fare)
	t.Status = domain.TicketStatus(status)

	return &t, nil
}
