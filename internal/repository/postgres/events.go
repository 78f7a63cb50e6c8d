package postgresrepo

import (
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/tixpay/internal/domain"
)

const eventColumns = `id, producer_id, title, starts_at, ends_at,
	full_price, half_price, full_capacity, half_capacity, full_count, half_count`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	if err := row.Scan(
		&e.ID,
		&e.ProducerID,
		&e.Title,
		&e.Starts,
		&e.Ends,
		&e.FullPrice,
		&e.HalfPrice,
		&e.FullCapacity,
		&e.HalfCapacity,
		&e.FullCount,
		&e.HalfCount,
	); err != nil {
		return nil, err
	}

	return &e, nil
}
