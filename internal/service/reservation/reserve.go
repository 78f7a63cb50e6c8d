package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/metrics"
	"github.com/kirinyoku/tixpay/internal/repository"
	postgresrepo "github.com/kirinyoku/tixpay/internal/repository/postgres"
	"github.com/kirinyoku/tixpay/internal/uow"
)

type ReserveInput struct {
	UserID    int64
	EventID   int64
	FareClass domain.FareClass
	Quantity  int
	Hold      time.Duration
	// RateKey identifies the caller for rate limiting. Empty disables it.
	RateKey string
}

// Reservation is one reserved line: the tickets sharing an order id.
type Reservation struct {
	OrderID   uuid.UUID
	EventID   int64
	FareClass domain.FareClass
	Tickets   []domain.Ticket
	ExpiresAt time.Time
}

// Reserve takes Quantity units of one fare class and creates that many
// pending tickets under a fresh order id, all in one transaction.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: reservation request; Hold is clamped to the configured bounds.
//
// Returns:
//   - *Reservation: the reserved tickets.
//   - error: reservation.ErrInsufficientStock if fewer units remain.
//   - error: reservation.ErrEventNotFound if the event does not exist.
//   - error: reservation.ErrRateLimited if the caller exceeded its rate.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (*Reservation, error) {
	const op = "service.reservation.Reserve"

	if s.limiter != nil && in.RateKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, in.RateKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			metrics.Reservation("rate_limited")
			return nil, fmt.Errorf("%s:%w", op, RateLimitedError{RetryAfter: retry.String()})
		}
	}

	items := []domain.CartItem{{EventID: in.EventID, FareClass: in.FareClass, Quantity: in.Quantity}}

	res, err := s.reserveItems(ctx, in.UserID, items, in.Hold)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &res[0], nil
}

// ReserveCart reserves every cart line in one transaction, one order id per
// line. Either all lines are reserved or none.
//
// Returns:
//   - []Reservation: one entry per cart line, in cart order.
//   - error: reservation.ErrEmptyCart if items is empty.
//   - error: reservation.ErrInsufficientStock if any line cannot be served.
func (s *Service) ReserveCart(ctx context.Context, userID int64, items []domain.CartItem, hold time.Duration) ([]Reservation, error) {
	const op = "service.reservation.ReserveCart"

	if len(items) == 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrEmptyCart)
	}

	res, err := s.reserveItems(ctx, userID, items, hold)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

func (s *Service) reserveItems(ctx context.Context, userID int64, items []domain.CartItem, hold time.Duration) ([]Reservation, error) {
	const op = "service.reservation.reserveItems"

	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%s:%w", op, ErrInvalidQuantity)
		}
		if !it.FareClass.Valid() {
			return nil, fmt.Errorf("%s:%w", op, ErrInvalidFare)
		}
	}

	hold = s.clampHold(hold)

	var out []Reservation

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		out = out[:0]
		now := s.clock.Now()

		var touched []int64
		for _, it := range items {
			e, err := s.store.Query().With(tx).GetEvent(ctx, it.EventID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%s:%w", op, ErrEventNotFound)
				}
				return fmt.Errorf("%s:%w", op, err)
			}

			if err := s.store.Inventory().
				With(tx).
				Decrement(ctx, it.EventID, it.FareClass, int64(it.Quantity)); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%s:%w", op, ErrEventNotFound)
				}
				return mapRepoErr(op, err)
			}

			orderID := uuid.New()
			tickets := make([]domain.Ticket, 0, it.Quantity)
			for range it.Quantity {
				tickets = append(tickets, domain.NewPendingTicket(userID, it.EventID, orderID, it.FareClass, e.Price(it.FareClass), now, hold))
			}

			if err := s.store.Tickets().With(tx).InsertBatch(ctx, tickets); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			out = append(out, Reservation{
				OrderID:   orderID,
				EventID:   it.EventID,
				FareClass: it.FareClass,
				Tickets:   tickets,
				ExpiresAt: now.Add(hold),
			})
			touched = append(touched, it.EventID)
		}

		s.inventoryChanged(after, touched...)

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientStock):
			metrics.Reservation("insufficient_stock")
		case errors.Is(err, ErrEventNotFound):
			metrics.Reservation("event_not_found")
		default:
			metrics.Reservation("error")
		}
		return nil, err
	}

	metrics.Reservation("reserved")

	return out, nil
}
