package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func pending(t *testing.T, hold time.Duration) Ticket {
	t.Helper()
	tk := NewPendingTicket(7, 1, uuid.New(), FareFull, decimal.NewFromInt(50), now, hold)
	require.NoError(t, tk.CheckExpiry())
	return tk
}

func TestTicket_ConfirmPaid(t *testing.T) {
	t.Run("pending becomes paid and loses expiry", func(t *testing.T) {
		tk := pending(t, 15*time.Minute)

		changed, err := tk.ConfirmPaid("pay-1", now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, TicketPaid, tk.Status)
		assert.Nil(t, tk.ExpiresAt)
		require.NotNil(t, tk.PaymentID)
		assert.Equal(t, "pay-1", *tk.PaymentID)
		assert.NoError(t, tk.CheckExpiry())
	})

	t.Run("same payment twice is a no-op", func(t *testing.T) {
		tk := pending(t, 15*time.Minute)
		_, err := tk.ConfirmPaid("pay-1", now)
		require.NoError(t, err)

		changed, err := tk.ConfirmPaid("pay-1", now.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, now, tk.UpdatedAt)
	})

	t.Run("other payment is rejected", func(t *testing.T) {
		tk := pending(t, 15*time.Minute)
		_, err := tk.ConfirmPaid("pay-1", now)
		require.NoError(t, err)

		_, err = tk.ConfirmPaid("pay-2", now)
		assert.ErrorIs(t, err, ErrPaymentMismatch)
	})

	for _, st := range []TicketStatus{TicketExpired, TicketCancelled, TicketRefunded, TicketRefused} {
		t.Run("rejects "+string(st), func(t *testing.T) {
			tk := pending(t, time.Minute)
			tk.Status = st
			tk.ExpiresAt = nil

			_, err := tk.ConfirmPaid("pay-1", now)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, st, tk.Status)
		})
	}
}

func TestTicket_Expire(t *testing.T) {
	t.Run("lapsed hold expires", func(t *testing.T) {
		tk := pending(t, 15*time.Minute)

		err := tk.Expire(now.Add(25 * time.Minute))
		require.NoError(t, err)
		assert.Equal(t, TicketExpired, tk.Status)
		assert.Nil(t, tk.ExpiresAt)
		assert.NoError(t, tk.CheckExpiry())
	})

	t.Run("hold still running", func(t *testing.T) {
		tk := pending(t, 15*time.Minute)

		err := tk.Expire(now.Add(15 * time.Minute))
		assert.ErrorIs(t, err, ErrNotExpirable)
		assert.Equal(t, TicketPending, tk.Status)
	})

	t.Run("second expire fails", func(t *testing.T) {
		tk := pending(t, time.Minute)
		require.NoError(t, tk.Expire(now.Add(time.Hour)))

		err := tk.Expire(now.Add(time.Hour))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("paid never expires", func(t *testing.T) {
		tk := NewPaidTicket(7, 1, uuid.New(), FareHalf, decimal.NewFromInt(25), "pay-1", now)

		err := tk.Expire(now.Add(time.Hour))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestTicket_CancelAndRefund(t *testing.T) {
	start := now.Add(48 * time.Hour)

	t.Run("cancel before start restores", func(t *testing.T) {
		tk := pending(t, time.Minute)

		restore, err := tk.Cancel(now, start)
		require.NoError(t, err)
		assert.True(t, restore)
		assert.Equal(t, TicketCancelled, tk.Status)
		assert.NoError(t, tk.CheckExpiry())
	})

	t.Run("cancel after start keeps inventory", func(t *testing.T) {
		tk := NewPaidTicket(7, 1, uuid.New(), FareFull, decimal.NewFromInt(50), "pay-1", now)

		restore, err := tk.Cancel(start.Add(time.Minute), start)
		require.NoError(t, err)
		assert.False(t, restore)
	})

	t.Run("cancel terminal ticket", func(t *testing.T) {
		tk := pending(t, time.Minute)
		require.NoError(t, tk.Expire(now.Add(time.Hour)))

		_, err := tk.Cancel(now, start)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("refund paid", func(t *testing.T) {
		tk := NewPaidTicket(7, 1, uuid.New(), FareFull, decimal.NewFromInt(50), "pay-1", now)

		require.NoError(t, tk.Refund(now))
		assert.Equal(t, TicketRefunded, tk.Status)

		_, err := tk.ConfirmPaid("pay-1", now)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("refund pending", func(t *testing.T) {
		tk := pending(t, time.Minute)
		assert.ErrorIs(t, tk.Refund(now), ErrInvalidTransition)
	})
}

func TestTicket_Refuse(t *testing.T) {
	tk := pending(t, time.Minute)
	require.NoError(t, tk.Refuse(now))
	assert.Equal(t, TicketRefused, tk.Status)
	assert.ErrorIs(t, tk.Refuse(now), ErrInvalidTransition)
}

func TestTicket_Release(t *testing.T) {
	tk := pending(t, time.Minute)
	require.NoError(t, tk.Release(now))
	assert.Equal(t, TicketCancelled, tk.Status)
	assert.NoError(t, tk.CheckExpiry())

	paid := NewPaidTicket(7, 1, uuid.New(), FareFull, decimal.NewFromInt(50), "pay-1", now)
	assert.ErrorIs(t, paid.Release(now), ErrInvalidTransition)
}

func TestSchedulerLock_Held(t *testing.T) {
	l := SchedulerLock{JobName: "expiry-sweep", Running: true, LastUpdated: now}

	assert.True(t, l.Held(now.Add(4*time.Minute), 5*time.Minute))
	assert.False(t, l.Held(now.Add(5*time.Minute), 5*time.Minute))

	l.Running = false
	assert.False(t, l.Held(now, 5*time.Minute))
}

func TestPayout_Due(t *testing.T) {
	p := Payout{Status: PayoutPending, ReleaseDate: now}

	assert.False(t, p.Due(now.Add(-time.Second)))
	assert.True(t, p.Due(now))

	p.Status = PayoutError
	assert.False(t, p.Due(now.Add(time.Hour)))
}
