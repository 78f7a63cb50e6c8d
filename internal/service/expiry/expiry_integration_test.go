//go:build integration

package expiry_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tixpay/internal/clock"
	"github.com/kirinyoku/tixpay/internal/domain"
	postgresrepo "github.com/kirinyoku/tixpay/internal/repository/postgres"
	"github.com/kirinyoku/tixpay/internal/service/expiry"
	"github.com/kirinyoku/tixpay/internal/service/lock"
	"github.com/kirinyoku/tixpay/internal/service/reservation"
	"github.com/kirinyoku/tixpay/internal/testutil/pgtest"
)

func TestSweep_AgainstPostgres(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	store := postgresrepo.NewStore(pgtest.New(t))
	clk := clock.NewMock(t0)

	producerID, err := store.Admin().CreateProducer(ctx, "Night Owl", nil)
	require.NoError(t, err)

	eventID, err := store.Admin().CreateEvent(ctx, domain.Event{
		ProducerID:   producerID,
		Title:        "Matinee",
		Starts:       t0.Add(24 * time.Hour),
		Ends:         t0.Add(26 * time.Hour),
		FullPrice:    decimal.NewFromInt(80),
		HalfPrice:    decimal.NewFromInt(40),
		FullCapacity: 10,
		HalfCapacity: 10,
	})
	require.NoError(t, err)

	res := reservation.New(store, nil, nil, nil, clk, nil, reservation.Config{})

	_, err = res.Reserve(ctx, reservation.ReserveInput{
		UserID: 1, EventID: eventID, FareClass: domain.FareFull, Quantity: 2, Hold: 10 * time.Minute,
	})
	require.NoError(t, err)
	_, err = res.Reserve(ctx, reservation.ReserveInput{
		UserID: 2, EventID: eventID, FareClass: domain.FareHalf, Quantity: 1, Hold: 30 * time.Minute,
	})
	require.NoError(t, err)

	locker := lock.New(store.Locks(), clk, nil)
	job := expiry.New(locker, store.Tickets(), res, clk, nil, expiry.Config{Staleness: 5 * time.Minute})

	clk.Add(15 * time.Minute)

	t.Run("held lease skips the tick", func(t *testing.T) {
		other := lock.New(store.Locks(), clk, nil)
		lease, ok, err := other.TryAcquire(ctx, expiry.JobName, 5*time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		out, err := job.Sweep(ctx)
		require.NoError(t, err)
		assert.True(t, out.Skipped)

		require.NoError(t, other.Release(ctx, lease))
	})

	t.Run("only lapsed holds expire", func(t *testing.T) {
		out, err := job.Sweep(ctx)
		require.NoError(t, err)
		assert.False(t, out.Skipped)
		assert.Equal(t, 2, out.Candidates)
		assert.Equal(t, 2, out.Expired)

		c, err := store.Inventory().Counts(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), c.FullCount)
		assert.Equal(t, int64(9), c.HalfCount)

		l, err := store.Locks().Get(ctx, expiry.JobName)
		require.NoError(t, err)
		assert.False(t, l.Running)
	})

	t.Run("nothing left on the next tick", func(t *testing.T) {
		out, err := job.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, out.Candidates)
	})
}
