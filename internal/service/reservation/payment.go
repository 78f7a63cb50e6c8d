package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/repository"
	postgresrepo "github.com/kirinyoku/tixpay/internal/repository/postgres"
	"github.com/kirinyoku/tixpay/internal/uow"
)

// PaidItem is one purchased line of an approved payment. OrderID is uuid.Nil
// when checkout made no reservation for it.
type PaidItem struct {
	EventID   int64
	FareClass domain.FareClass
	Quantity  int
	OrderID   uuid.UUID
}

type ApprovedPayment struct {
	PaymentID string
	UserID    int64
	Items     []PaidItem
}

// PaymentResult describes what an approved payment produced.
type PaymentResult struct {
	// AlreadyProcessed is set when the payment was ingested before; nothing
	// was written.
	AlreadyProcessed bool
	// Issued lists every ticket now paid by this payment.
	Issued  []domain.Ticket
	Payouts []domain.Payout
	// Unfulfilled lists items, with the missing quantity, that could not be
	// issued because the stock was gone. They need a manual refund.
	Unfulfilled []PaidItem
}

// ApplyApprovedPayment turns an approved payment into paid tickets, one payout
// per order, and an emptied cart, all in one transaction.
//
// Reserved items are confirmed in place. Units whose reservation is missing
// or no longer pending are issued as new paid tickets after a conditional
// decrement, so no ticket exists without its unit; if the decrement fails the
// units are reported in Unfulfilled. A payment id is applied at most once.
//
// Parameters:
//   - ctx: request-scoped context.
//   - p: the approved payment and its line items.
//
// Returns:
//   - *PaymentResult: issued tickets, created payouts, unfulfilled items.
//   - error: reservation.ErrInvalidFare or ErrInvalidQuantity for bad items.
//   - error: any datastore failure; nothing was written.
func (s *Service) ApplyApprovedPayment(ctx context.Context, p ApprovedPayment) (*PaymentResult, error) {
	const op = "service.reservation.ApplyApprovedPayment"

	for _, it := range p.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%s:%w", op, ErrInvalidQuantity)
		}
		if !it.FareClass.Valid() {
			return nil, fmt.Errorf("%s:%w", op, ErrInvalidFare)
		}
	}

	var res *PaymentResult

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		res = &PaymentResult{}
		now := s.clock.Now()

		claimed, err := s.store.Payments().With(tx).MarkProcessed(ctx, p.PaymentID, "approved", now)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		issued, err := s.store.Tickets().With(tx).CountByPayment(ctx, p.PaymentID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if !claimed || issued > 0 {
			res.AlreadyProcessed = true
			return nil
		}

		events := make(map[int64]*domain.Event)
		byOrder := make(map[uuid.UUID][]domain.Ticket)
		var orders []uuid.UUID

		for _, it := range p.Items {
			e, ok := events[it.EventID]
			if !ok {
				e, err = s.store.Query().With(tx).GetEvent(ctx, it.EventID)
				if err != nil {
					if errors.Is(err, repository.ErrNotFound) {
						s.logger.Error("paid item references unknown event, manual refund required",
							"payment_id", p.PaymentID, "event_id", it.EventID, "quantity", it.Quantity)
						res.Unfulfilled = append(res.Unfulfilled, it)
						continue
					}
					return fmt.Errorf("%s:%w", op, err)
				}
				events[it.EventID] = e
			}

			orderID := it.OrderID
			confirmed := 0

			if orderID != uuid.Nil {
				tickets, err := s.store.Tickets().With(tx).ListByOrder(ctx, orderID, true)
				if err != nil {
					return fmt.Errorf("%s:%w", op, err)
				}

				pending := tickets[:0]
				for _, t := range tickets {
					if t.Status == domain.TicketPending && t.EventID == it.EventID && t.FareClass == it.FareClass {
						pending = append(pending, t)
					}
				}
				if len(pending) > it.Quantity {
					pending = pending[:it.Quantity]
				}

				if _, err := s.confirmTickets(ctx, tx, pending, p.PaymentID, now); err != nil {
					return mapRepoErr(op, err)
				}

				confirmed = len(pending)
				if confirmed > 0 {
					if _, seen := byOrder[orderID]; !seen {
						orders = append(orders, orderID)
					}
					byOrder[orderID] = append(byOrder[orderID], pending...)
				}
			} else {
				orderID = uuid.New()
			}

			missing := it.Quantity - confirmed
			if missing == 0 {
				continue
			}

			err := s.store.Inventory().With(tx).Decrement(ctx, it.EventID, it.FareClass, int64(missing))
			if err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					s.logger.Error("paid item out of stock, manual refund required",
						"payment_id", p.PaymentID,
						"event_id", it.EventID,
						"fare_class", it.FareClass,
						"missing", missing,
					)
					short := it
					short.Quantity = missing
					res.Unfulfilled = append(res.Unfulfilled, short)
					continue
				}
				return fmt.Errorf("%s:%w", op, err)
			}

			fresh := make([]domain.Ticket, 0, missing)
			for range missing {
				fresh = append(fresh, domain.NewPaidTicket(p.UserID, it.EventID, orderID, it.FareClass, e.Price(it.FareClass), p.PaymentID, now))
			}

			if err := s.store.Tickets().With(tx).InsertBatch(ctx, fresh); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			if _, seen := byOrder[orderID]; !seen {
				orders = append(orders, orderID)
			}
			byOrder[orderID] = append(byOrder[orderID], fresh...)
		}

		var touched []int64
		for _, orderID := range orders {
			tickets := byOrder[orderID]
			e := events[tickets[0].EventID]

			po := s.cfg.Payout.NewPayout(e.ProducerID, orderID, p.PaymentID, tickets, e.Ends, now)
			created, err := s.store.Payouts().With(tx).Create(ctx, po)
			if err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}
			if created {
				res.Payouts = append(res.Payouts, po)
			}

			res.Issued = append(res.Issued, tickets...)
			touched = append(touched, e.ID)
		}

		if err := s.store.Carts().With(tx).Delete(ctx, p.UserID); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		s.inventoryChanged(after, touched...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// RefusePayment records a declined payment and releases the pending tickets
// of the given orders. With no orders the payment is only recorded.
//
// Returns:
//   - int: number of tickets refused.
//   - bool: false when the payment was already recorded and nothing changed.
func (s *Service) RefusePayment(ctx context.Context, paymentID, status string, orderIDs []uuid.UUID) (int, bool, error) {
	const op = "service.reservation.RefusePayment"

	var claimed bool

	claim := func(ctx context.Context, tx postgresrepo.DB, now time.Time) (bool, error) {
		var err error
		claimed, err = s.store.Payments().With(tx).MarkProcessed(ctx, paymentID, status, now)
		return claimed, err
	}

	n, err := s.terminatePending(ctx, orderIDs, "refused", (*domain.Ticket).Refuse, claim)
	if err != nil {
		return 0, false, fmt.Errorf("%s:%w", op, err)
	}

	return n, claimed, nil
}
