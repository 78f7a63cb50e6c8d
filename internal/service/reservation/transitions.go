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

// Restore identifies one inventory counter.
type Restore struct {
	EventID   int64
	FareClass domain.FareClass
}

type ExpiryResult struct {
	Expired  int
	Skipped  int
	Restored map[Restore]int64
}

// ConfirmPaid moves pending tickets to paid under paymentID. Tickets already
// paid by the same payment are left as they are.
//
// Returns:
//   - int: number of tickets that changed state.
//   - error: reservation.ErrTicketNotFound if an id is unknown.
//   - error: reservation.ErrInvalidTransition if a ticket is expired, cancelled, refused or refunded.
//   - error: reservation.ErrPaymentMismatch if a ticket was paid by another payment.
func (s *Service) ConfirmPaid(ctx context.Context, ticketIDs []uuid.UUID, paymentID string) (int, error) {
	const op = "service.reservation.ConfirmPaid"

	var changed int

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		changed = 0
		now := s.clock.Now()

		tickets, err := s.store.Tickets().With(tx).ListByIDs(ctx, ticketIDs)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if len(tickets) != len(uniqueIDs(ticketIDs)) {
			return fmt.Errorf("%s:%w", op, ErrTicketNotFound)
		}

		n, err := s.confirmTickets(ctx, tx, tickets, paymentID, now)
		if err != nil {
			return mapRepoErr(op, err)
		}
		changed = n

		return nil
	})
	if err != nil {
		return 0, err
	}

	return changed, nil
}

// confirmTickets applies ConfirmPaid to every ticket in place and persists the
// ones that changed.
func (s *Service) confirmTickets(ctx context.Context, tx postgresrepo.DB, tickets []domain.Ticket, paymentID string, now time.Time) (int, error) {
	changed := 0
	for i := range tickets {
		from := tickets[i].Status

		ok, err := tickets[i].ConfirmPaid(paymentID, now)
		if err != nil {
			return changed, err
		}
		if !ok {
			continue
		}

		if err := s.store.Tickets().With(tx).Transition(ctx, tickets[i], from); err != nil {
			return changed, err
		}
		changed++
	}

	return changed, nil
}

// Expire moves one pending ticket whose hold lapsed before now to expired and
// gives its unit back to the event.
//
// Returns:
//   - error: reservation.ErrNotExpirable if the ticket is not pending or not due.
func (s *Service) Expire(ctx context.Context, ticketID uuid.UUID, now time.Time) error {
	const op = "service.reservation.Expire"

	res, err := s.expire(ctx, []uuid.UUID{ticketID}, now)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if res.Expired == 0 {
		return fmt.Errorf("%s:%w", op, ErrNotExpirable)
	}

	return nil
}

// ExpireBatch expires every due ticket among ticketIDs and applies the
// aggregated counter restores in the same transaction. Tickets that stopped
// being expirable since they were listed are skipped. Any other failure rolls
// back the whole batch.
func (s *Service) ExpireBatch(ctx context.Context, ticketIDs []uuid.UUID, now time.Time) (ExpiryResult, error) {
	const op = "service.reservation.ExpireBatch"

	res, err := s.expire(ctx, ticketIDs, now)
	if err != nil {
		return ExpiryResult{}, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

func (s *Service) expire(ctx context.Context, ticketIDs []uuid.UUID, now time.Time) (ExpiryResult, error) {
	var res ExpiryResult

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		res = ExpiryResult{Restored: make(map[Restore]int64)}

		for _, id := range ticketIDs {
			eventID, fare, err := s.store.Tickets().With(tx).ExpireIfDue(ctx, id, now)
			if err != nil {
				if errors.Is(err, repository.ErrStaleState) {
					res.Skipped++
					continue
				}
				return err
			}

			res.Expired++
			res.Restored[Restore{EventID: eventID, FareClass: fare}]++
		}

		touched := make([]int64, 0, len(res.Restored))
		for r, n := range res.Restored {
			if err := s.store.Inventory().With(tx).Increment(ctx, r.EventID, r.FareClass, n); err != nil {
				return err
			}
			touched = append(touched, r.EventID)
		}

		s.inventoryChanged(after, touched...)

		return nil
	})
	if err != nil {
		return ExpiryResult{}, err
	}

	for r, n := range res.Restored {
		metrics.UnitsRestored("expired", string(r.FareClass), n)
	}

	return res, nil
}

// Cancel terminates a pending or paid ticket. The unit returns to the event
// only while the event has not started.
//
// Returns:
//   - bool: whether inventory was restored.
//   - error: reservation.ErrTicketNotFound if the ticket does not exist.
//   - error: reservation.ErrInvalidTransition if the ticket is already terminal.
func (s *Service) Cancel(ctx context.Context, ticketID uuid.UUID) (bool, error) {
	const op = "service.reservation.Cancel"

	var (
		restored bool
		fare     domain.FareClass
	)

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		restored = false

		t, err := s.store.Tickets().With(tx).GetForUpdate(ctx, ticketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrTicketNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		e, err := s.store.Query().With(tx).GetEvent(ctx, t.EventID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		from := t.Status
		restore, err := t.Cancel(s.clock.Now(), e.Starts)
		if err != nil {
			return mapRepoErr(op, err)
		}

		if err := s.store.Tickets().With(tx).Transition(ctx, *t, from); err != nil {
			return mapRepoErr(op, err)
		}

		if from == domain.TicketPaid {
			if err := s.withdrawPayout(ctx, tx, t.OrderID, t.UpdatedAt); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}
		}

		if restore {
			if err := s.store.Inventory().With(tx).Increment(ctx, t.EventID, t.FareClass, 1); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}
			s.inventoryChanged(after, t.EventID)
		}

		restored = restore
		fare = t.FareClass

		return nil
	})
	if err != nil {
		return false, err
	}

	if restored {
		metrics.UnitsRestored("cancelled", string(fare), 1)
	}

	return restored, nil
}

// Refund terminates a paid ticket. Refunded units never return to inventory.
// The order's unsettled payout is withdrawn once no paid ticket remains.
//
// Returns:
//   - error: reservation.ErrTicketNotFound if the ticket does not exist.
//   - error: reservation.ErrInvalidTransition if the ticket is not paid.
func (s *Service) Refund(ctx context.Context, ticketID uuid.UUID) error {
	const op = "service.reservation.Refund"

	return s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		t, err := s.store.Tickets().With(tx).GetForUpdate(ctx, ticketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrTicketNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		now := s.clock.Now()
		from := t.Status
		if err := t.Refund(now); err != nil {
			return mapRepoErr(op, err)
		}

		if err := s.store.Tickets().With(tx).Transition(ctx, *t, from); err != nil {
			return mapRepoErr(op, err)
		}

		return s.withdrawPayout(ctx, tx, t.OrderID, now)
	})
}

// withdrawPayout marks the order's payout refunded once no paid ticket is
// left in the order. Settled payouts are not touched.
func (s *Service) withdrawPayout(ctx context.Context, tx postgresrepo.DB, orderID uuid.UUID, now time.Time) error {
	const op = "service.reservation.withdrawPayout"

	p, err := s.store.Payouts().With(tx).GetByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	if p.Status != domain.PayoutPending {
		return nil
	}

	tickets, err := s.store.Tickets().With(tx).ListByOrder(ctx, orderID, true)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	for _, t := range tickets {
		if t.Status == domain.TicketPaid {
			return nil
		}
	}

	if _, err := s.store.Payouts().With(tx).MarkRefunded(ctx, p.ID, now); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("payout withdrawn, order fully refunded", "order_id", orderID, "payout_id", p.ID)

	return nil
}

// ReleaseOrders cancels the pending tickets of the given orders and restores
// their inventory. Tickets in any other state are left alone. It undoes a
// checkout whose payment intent could not be created.
func (s *Service) ReleaseOrders(ctx context.Context, orderIDs []uuid.UUID) (int, error) {
	const op = "service.reservation.ReleaseOrders"

	n, err := s.terminatePending(ctx, orderIDs, "released", (*domain.Ticket).Release, nil)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return n, nil
}

// terminatePending applies fn to every pending ticket of the orders, persists
// the change and restores one unit per ticket. When claim is set it runs first
// in the same transaction and a false result turns the call into a no-op.
func (s *Service) terminatePending(
	ctx context.Context,
	orderIDs []uuid.UUID,
	reason string,
	fn func(t *domain.Ticket, now time.Time) error,
	claim func(ctx context.Context, tx postgresrepo.DB, now time.Time) (bool, error),
) (int, error) {
	var (
		n        int
		restored map[Restore]int64
	)

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		n = 0
		restored = make(map[Restore]int64)
		now := s.clock.Now()

		if claim != nil {
			ok, err := claim(ctx, tx, now)
			if err != nil || !ok {
				return err
			}
		}

		for _, orderID := range orderIDs {
			tickets, err := s.store.Tickets().With(tx).ListByOrder(ctx, orderID, true)
			if err != nil {
				return err
			}

			for i := range tickets {
				t := &tickets[i]
				if t.Status != domain.TicketPending {
					continue
				}

				if err := fn(t, now); err != nil {
					return err
				}

				if err := s.store.Tickets().With(tx).Transition(ctx, *t, domain.TicketPending); err != nil {
					return err
				}

				restored[Restore{EventID: t.EventID, FareClass: t.FareClass}]++
				n++
			}
		}

		touched := make([]int64, 0, len(restored))
		for r, qty := range restored {
			if err := s.store.Inventory().With(tx).Increment(ctx, r.EventID, r.FareClass, qty); err != nil {
				return err
			}
			touched = append(touched, r.EventID)
		}

		s.inventoryChanged(after, touched...)

		return nil
	})
	if err != nil {
		return 0, err
	}

	for r, qty := range restored {
		metrics.UnitsRestored(reason, string(r.FareClass), qty)
	}

	return n, nil
}

func uniqueIDs(ids []uuid.UUID) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
