package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixpay/internal/clock"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/gateway/processor"
	"github.com/kirinyoku/tixpay/internal/repository"
	"github.com/kirinyoku/tixpay/internal/service/reservation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memCarts map[int64][]domain.CartItem

func (m memCarts) Put(_ context.Context, userID int64, items []domain.CartItem, _ time.Time) error {
	m[userID] = items
	return nil
}

func (m memCarts) Get(_ context.Context, userID int64) (*domain.Cart, error) {
	items, ok := m[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &domain.Cart{UserID: userID, Items: items}, nil
}

type events map[int64]domain.Event

var errUnknownEvent = errors.New("event not found")

func (e events) GetEvent(_ context.Context, id int64) (*domain.Event, error) {
	ev, ok := e[id]
	if !ok {
		return nil, errUnknownEvent
	}
	return &ev, nil
}

type mockReserver struct{ mock.Mock }

func (m *mockReserver) ReserveCart(ctx context.Context, userID int64, items []domain.CartItem, hold time.Duration) ([]reservation.Reservation, error) {
	args := m.Called(ctx, userID, items, hold)
	res, _ := args.Get(0).([]reservation.Reservation)
	return res, args.Error(1)
}

func (m *mockReserver) ReleaseOrders(ctx context.Context, orderIDs []uuid.UUID) (int, error) {
	args := m.Called(ctx, orderIDs)
	return args.Int(0), args.Error(1)
}

type mockIntents struct{ mock.Mock }

func (m *mockIntents) CreatePaymentIntent(ctx context.Context, in processor.Intent) (*processor.IntentRef, error) {
	args := m.Called(ctx, in)
	ref, _ := args.Get(0).(*processor.IntentRef)
	return ref, args.Error(1)
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(carts Carts, r Reserver, i IntentCreator) *Service {
	evs := events{1: {ID: 1, Title: "Opening Night"}, 2: {ID: 2, Title: "Matinee"}}
	return New(carts, evs, r, i, clock.NewMock(now), slog.New(slog.NewTextHandler(io.Discard, nil)), Config{MaxItems: 3})
}

func TestPutCart(t *testing.T) {
	t.Run("merges lines", func(t *testing.T) {
		carts := memCarts{}
		s := newService(carts, nil, nil)

		c, err := s.PutCart(context.Background(), 7, []domain.CartItem{
			{EventID: 1, FareClass: domain.FareFull, Quantity: 1},
			{EventID: 2, FareClass: domain.FareHalf, Quantity: 2},
			{EventID: 1, FareClass: domain.FareFull, Quantity: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, []domain.CartItem{
			{EventID: 1, FareClass: domain.FareFull, Quantity: 3},
			{EventID: 2, FareClass: domain.FareHalf, Quantity: 2},
		}, c.Items)
		assert.Equal(t, c.Items, carts[7])
	})

	t.Run("rejects bad lines", func(t *testing.T) {
		s := newService(memCarts{}, nil, nil)

		for _, it := range []domain.CartItem{
			{EventID: 1, FareClass: "vip", Quantity: 1},
			{EventID: 1, FareClass: domain.FareFull, Quantity: 0},
			{EventID: 0, FareClass: domain.FareFull, Quantity: 1},
		} {
			_, err := s.PutCart(context.Background(), 7, []domain.CartItem{it})
			assert.ErrorIs(t, err, ErrInvalidItem)
		}
	})

	t.Run("too many lines", func(t *testing.T) {
		s := newService(memCarts{}, nil, nil)

		_, err := s.PutCart(context.Background(), 7, []domain.CartItem{
			{EventID: 1, FareClass: domain.FareFull, Quantity: 1},
			{EventID: 1, FareClass: domain.FareHalf, Quantity: 1},
			{EventID: 2, FareClass: domain.FareFull, Quantity: 1},
			{EventID: 2, FareClass: domain.FareHalf, Quantity: 1},
		})
		assert.ErrorIs(t, err, ErrTooManyItems)
	})

	t.Run("unknown event", func(t *testing.T) {
		s := newService(memCarts{}, nil, nil)

		_, err := s.PutCart(context.Background(), 7, []domain.CartItem{{EventID: 9, FareClass: domain.FareFull, Quantity: 1}})
		assert.ErrorIs(t, err, errUnknownEvent)
	})
}

func TestGetCart_Missing(t *testing.T) {
	c, err := newService(memCarts{}, nil, nil).GetCart(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func reservedLine(eventID int64, fare domain.FareClass, qty int, price int64) reservation.Reservation {
	orderID := uuid.New()
	r := reservation.Reservation{OrderID: orderID, EventID: eventID, FareClass: fare, ExpiresAt: now.Add(15 * time.Minute)}
	for range qty {
		r.Tickets = append(r.Tickets, domain.NewPendingTicket(7, eventID, orderID, fare, decimal.NewFromInt(price), now, 15*time.Minute))
	}
	return r
}

func TestCheckout(t *testing.T) {
	items := []domain.CartItem{
		{EventID: 1, FareClass: domain.FareFull, Quantity: 2},
		{EventID: 2, FareClass: domain.FareHalf, Quantity: 1},
	}
	reserved := []reservation.Reservation{
		reservedLine(1, domain.FareFull, 2, 50),
		reservedLine(2, domain.FareHalf, 1, 25),
	}

	t.Run("opens intent with reservation metadata", func(t *testing.T) {
		r := new(mockReserver)
		r.On("ReserveCart", mock.Anything, int64(7), items, 10*time.Minute).Return(reserved, nil).Once()

		i := new(mockIntents)
		i.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(in processor.Intent) bool {
			return in.Metadata.UserID == 7 &&
				len(in.Metadata.LineItems) == 2 &&
				in.Metadata.LineItems[0].OrderID == reserved[0].OrderID.String() &&
				in.Metadata.LineItems[0].Quantity == 2 &&
				in.Metadata.LineItems[1].OrderID == reserved[1].OrderID.String() &&
				in.Items[0].Title == "Opening Night (full)" &&
				in.Items[1].UnitPrice.Equal(decimal.NewFromInt(25))
		})).Return(&processor.IntentRef{ID: "pref-1", CheckoutURL: "https://pay.example/pref-1"}, nil).Once()

		res, err := newService(memCarts{7: items}, r, i).Checkout(context.Background(), 7, 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "pref-1", res.IntentID)
		assert.Equal(t, "https://pay.example/pref-1", res.CheckoutURL)
		assert.Len(t, res.Reservations, 2)

		r.AssertNotCalled(t, "ReleaseOrders", mock.Anything, mock.Anything)
		i.AssertExpectations(t)
	})

	t.Run("empty cart", func(t *testing.T) {
		r := new(mockReserver)
		_, err := newService(memCarts{}, r, new(mockIntents)).Checkout(context.Background(), 7, 0)
		assert.ErrorIs(t, err, ErrEmptyCart)
		r.AssertNotCalled(t, "ReserveCart", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("insufficient stock", func(t *testing.T) {
		r := new(mockReserver)
		r.On("ReserveCart", mock.Anything, int64(7), items, time.Duration(0)).
			Return(nil, reservation.ErrInsufficientStock).Once()
		i := new(mockIntents)

		_, err := newService(memCarts{7: items}, r, i).Checkout(context.Background(), 7, 0)
		assert.ErrorIs(t, err, reservation.ErrInsufficientStock)
		i.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
	})

	t.Run("processor failure releases reservations", func(t *testing.T) {
		r := new(mockReserver)
		r.On("ReserveCart", mock.Anything, int64(7), items, time.Duration(0)).Return(reserved, nil).Once()
		r.On("ReleaseOrders", mock.Anything, []uuid.UUID{reserved[0].OrderID, reserved[1].OrderID}).Return(3, nil).Once()

		i := new(mockIntents)
		i.On("CreatePaymentIntent", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Once()

		_, err := newService(memCarts{7: items}, r, i).Checkout(context.Background(), 7, 0)
		assert.ErrorIs(t, err, ErrPaymentUnavailable)
		r.AssertExpectations(t)
	})
}
