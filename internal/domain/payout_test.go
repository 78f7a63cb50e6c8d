package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPayoutPolicy(t *testing.T) {
	p := PayoutPolicy{FeePercent: decimal.NewFromInt(10), HoldBack: 48 * time.Hour, Currency: "BRL"}

	t.Run("net amount", func(t *testing.T) {
		assert.True(t, p.NetAmount(decimal.NewFromInt(100)).Equal(decimal.NewFromInt(90)))
		assert.Equal(t, "30.38", p.NetAmount(decimal.RequireFromString("33.75")).StringFixed(2))
	})

	t.Run("release after event end", func(t *testing.T) {
		end := now.Add(24 * time.Hour)
		assert.Equal(t, end.Add(48*time.Hour), p.ReleaseDate(now, end))
	})

	t.Run("release for past event", func(t *testing.T) {
		assert.Equal(t, now.Add(48*time.Hour), p.ReleaseDate(now, now.Add(-time.Hour)))
	})

	t.Run("new payout sums ticket prices", func(t *testing.T) {
		order := uuid.New()
		tickets := []Ticket{
			NewPaidTicket(1, 2, order, FareFull, decimal.NewFromInt(50), "pay", now),
			NewPaidTicket(1, 2, order, FareHalf, decimal.NewFromInt(25), "pay", now),
		}

		po := p.NewPayout(9, order, "pay", tickets, now, now)
		assert.Equal(t, PayoutPending, po.Status)
		assert.Equal(t, int64(9), po.ProducerID)
		assert.Equal(t, order, po.OrderID)
		assert.Equal(t, "67.50", po.Amount.StringFixed(2))
		assert.Equal(t, "BRL", po.Currency)
		assert.False(t, po.Due(now))
		assert.True(t, po.Due(now.Add(48*time.Hour)))
	})
}
