package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PayoutPolicy fixes how much of an order reaches the producer and when.
type PayoutPolicy struct {
	FeePercent decimal.Decimal
	HoldBack   time.Duration
	Currency   string
}

// NetAmount deducts the platform fee from gross, rounded to cents.
func (p PayoutPolicy) NetAmount(gross decimal.Decimal) decimal.Decimal {
	fee := gross.Mul(p.FeePercent).Div(hundred)
	return gross.Sub(fee).Round(2)
}

// ReleaseDate is the hold-back window after the later of now and the event end.
func (p PayoutPolicy) ReleaseDate(now, eventEnd time.Time) time.Time {
	base := now
	if eventEnd.After(base) {
		base = eventEnd
	}
	return base.Add(p.HoldBack)
}

// NewPayout builds the pending payout of one paid order.
func (p PayoutPolicy) NewPayout(producerID int64, orderID uuid.UUID, paymentID string, tickets []Ticket, eventEnd, now time.Time) Payout {
	gross := decimal.Zero
	for _, t := range tickets {
		gross = gross.Add(t.UnitPrice)
	}

	return Payout{
		ID:          uuid.New(),
		ProducerID:  producerID,
		OrderID:     orderID,
		PaymentID:   paymentID,
		Amount:      p.NetAmount(gross),
		Currency:    p.Currency,
		ReleaseDate: p.ReleaseDate(now, eventEnd),
		Status:      PayoutPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
