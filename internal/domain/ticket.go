package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTransition = errors.New("invalid ticket transition")
	ErrNotExpirable      = errors.New("ticket hold has not lapsed")
	ErrPaymentMismatch   = errors.New("ticket paid by another payment")
)

type Ticket struct {
	ID        uuid.UUID
	UserID    int64
	EventID   int64
	OrderID   uuid.UUID
	PaymentID *string
	FareClass FareClass
	UnitPrice decimal.Decimal
	Status    TicketStatus
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPendingTicket builds a held ticket that lapses at now+hold.
func NewPendingTicket(userID, eventID int64, orderID uuid.UUID, fare FareClass, price decimal.Decimal, now time.Time, hold time.Duration) Ticket {
	expires := now.Add(hold)
	return Ticket{
		ID:        uuid.New(),
		UserID:    userID,
		EventID:   eventID,
		OrderID:   orderID,
		FareClass: fare,
		UnitPrice: price,
		Status:    TicketPending,
		ExpiresAt: &expires,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewPaidTicket builds a ticket that is paid from the start.
func NewPaidTicket(userID, eventID int64, orderID uuid.UUID, fare FareClass, price decimal.Decimal, paymentID string, now time.Time) Ticket {
	pid := paymentID
	return Ticket{
		ID:        uuid.New(),
		UserID:    userID,
		EventID:   eventID,
		OrderID:   orderID,
		PaymentID: &pid,
		FareClass: fare,
		UnitPrice: price,
		Status:    TicketPaid,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ConfirmPaid moves a pending ticket to paid. Confirming an already paid
// ticket with the same payment id is a no-op and reports changed=false.
func (t *Ticket) ConfirmPaid(paymentID string, now time.Time) (changed bool, err error) {
	switch t.Status {
	case TicketPending:
	case TicketPaid:
		if t.PaymentID != nil && *t.PaymentID == paymentID {
			return false, nil
		}
		return false, ErrPaymentMismatch
	default:
		return false, t.transitionErr(TicketPaid)
	}

	pid := paymentID
	t.PaymentID = &pid
	t.Status = TicketPaid
	t.ExpiresAt = nil
	t.UpdatedAt = now

	return true, nil
}

// Expire moves a pending ticket whose hold lapsed before now to expired.
func (t *Ticket) Expire(now time.Time) error {
	if t.Status != TicketPending {
		return t.transitionErr(TicketExpired)
	}

	if t.ExpiresAt == nil || !t.ExpiresAt.Before(now) {
		return ErrNotExpirable
	}

	t.Status = TicketExpired
	t.ExpiresAt = nil
	t.UpdatedAt = now

	return nil
}

// Refuse marks a pending ticket whose payment was declined. Its unit of
// inventory goes back to the event.
func (t *Ticket) Refuse(now time.Time) error {
	if t.Status != TicketPending {
		return t.transitionErr(TicketRefused)
	}

	t.Status = TicketRefused
	t.ExpiresAt = nil
	t.UpdatedAt = now

	return nil
}

// Cancel terminates a pending or paid ticket. restore is true when the
// cancellation happens before the event starts.
func (t *Ticket) Cancel(now, eventStart time.Time) (restore bool, err error) {
	if t.Status != TicketPending && t.Status != TicketPaid {
		return false, t.transitionErr(TicketCancelled)
	}

	t.Status = TicketCancelled
	t.ExpiresAt = nil
	t.UpdatedAt = now

	return now.Before(eventStart), nil
}

// Release cancels a pending ticket whose reservation is being undone before
// payment. Its unit always goes back to the event.
func (t *Ticket) Release(now time.Time) error {
	if t.Status != TicketPending {
		return t.transitionErr(TicketCancelled)
	}

	t.Status = TicketCancelled
	t.ExpiresAt = nil
	t.UpdatedAt = now

	return nil
}

// Refund terminates a paid ticket. Inventory is never restored.
func (t *Ticket) Refund(now time.Time) error {
	if t.Status != TicketPaid {
		return t.transitionErr(TicketRefunded)
	}

	t.Status = TicketRefunded
	t.UpdatedAt = now

	return nil
}

// CheckExpiry validates the expires_at invariant: set iff pending.
func (t Ticket) CheckExpiry() error {
	if t.Status == TicketPending && t.ExpiresAt == nil {
		return fmt.Errorf("ticket %s: pending without expiry", t.ID)
	}

	if t.Status != TicketPending && t.ExpiresAt != nil {
		return fmt.Errorf("ticket %s: %s with expiry set", t.ID, t.Status)
	}

	return nil
}

func (t Ticket) transitionErr(to TicketStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
}
