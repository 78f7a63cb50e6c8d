package httpgin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tixpay/internal/clock"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/errs"
	"github.com/kirinyoku/tixpay/internal/gateway/processor"
	"github.com/kirinyoku/tixpay/internal/repository"
	"github.com/kirinyoku/tixpay/internal/service"
	"github.com/kirinyoku/tixpay/internal/service/checkout"
	"github.com/kirinyoku/tixpay/internal/service/reservation"
	"github.com/kirinyoku/tixpay/internal/service/webhook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakes ---

type fakeProcessor struct {
	payment *processor.Payment
	err     error
}

func (f fakeProcessor) GetPayment(context.Context, string) (*processor.Payment, error) {
	return f.payment, f.err
}

func (f fakeProcessor) CreatePaymentIntent(_ context.Context, in processor.Intent) (*processor.IntentRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &processor.IntentRef{ID: "pref-1", CheckoutURL: "https://pay.example/" + in.ExternalReference}, nil
}

type fakeLedger struct {
	calls int
}

func (f *fakeLedger) ApplyApprovedPayment(_ context.Context, p reservation.ApprovedPayment) (*reservation.PaymentResult, error) {
	f.calls++
	if f.calls > 1 {
		return &reservation.PaymentResult{AlreadyProcessed: true}, nil
	}
	return &reservation.PaymentResult{}, nil
}

func (f *fakeLedger) RefusePayment(context.Context, string, string, []uuid.UUID) (int, bool, error) {
	return 0, true, nil
}

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

type events struct{}

func (events) GetEvent(_ context.Context, id int64) (*domain.Event, error) {
	if id != 1 {
		return nil, fmt.Errorf("lookup: %w", reservation.ErrEventNotFound)
	}
	return &domain.Event{ID: 1, Title: "Opening Night"}, nil
}

type fakeReserver struct {
	err error
}

func (f fakeReserver) ReserveCart(_ context.Context, userID int64, items []domain.CartItem, hold time.Duration) ([]reservation.Reservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var out []reservation.Reservation
	for _, it := range items {
		orderID := uuid.New()
		r := reservation.Reservation{OrderID: orderID, EventID: it.EventID, FareClass: it.FareClass, ExpiresAt: now.Add(hold)}
		for range it.Quantity {
			r.Tickets = append(r.Tickets, domain.NewPendingTicket(userID, it.EventID, orderID, it.FareClass, decimal.NewFromInt(50), now, hold))
		}
		out = append(out, r)
	}
	return out, nil
}

func (fakeReserver) ReleaseOrders(context.Context, []uuid.UUID) (int, error) { return 0, nil }

func newTestRouter(t *testing.T, proc fakeProcessor, ledger *fakeLedger, reserver fakeReserver, secret string) (*gin.Engine, memCarts) {
	t.Helper()

	carts := memCarts{}
	svcs := &service.Services{
		Checkout: checkout.New(carts, events{}, reserver, proc, clock.NewMock(time.Now()), quiet(), checkout.Config{}),
		Webhook:  webhook.New(proc, ledger, nil, quiet()),
	}

	return NewRouter(svcs, nil, quiet(), RouterConfig{WebhookSecret: secret}), carts
}

func do(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// --- tests ---

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, fakeProcessor{}, &fakeLedger{}, fakeReserver{}, "")

	w := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

const notification = `{"type":"payment","data":{"id":"pay-1"}}`

func approved() *processor.Payment {
	return &processor.Payment{
		ID:     "pay-1",
		Status: processor.StatusApproved,
		Metadata: processor.Metadata{
			UserID:    7,
			LineItems: []processor.LineItem{{EventID: 1, FareClass: "full", Quantity: 1}},
		},
	}
}

func TestPaymentWebhook(t *testing.T) {
	t.Run("processed then duplicate", func(t *testing.T) {
		ledger := &fakeLedger{}
		r, _ := newTestRouter(t, fakeProcessor{payment: approved()}, ledger, fakeReserver{}, "")

		w := do(r, http.MethodPost, "/webhooks/payments", notification)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"outcome":"processed"}`, w.Body.String())

		w = do(r, http.MethodPost, "/webhooks/payments", notification)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"outcome":"duplicate"}`, w.Body.String())
	})

	t.Run("malformed is acknowledged", func(t *testing.T) {
		r, _ := newTestRouter(t, fakeProcessor{}, &fakeLedger{}, fakeReserver{}, "")

		w := do(r, http.MethodPost, "/webhooks/payments", `not json`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"outcome":"rejected"}`, w.Body.String())
	})

	t.Run("processor down asks for redelivery", func(t *testing.T) {
		proc := fakeProcessor{err: errs.Transient(errors.New("dial tcp: refused"), "get payment")}
		r, _ := newTestRouter(t, proc, &fakeLedger{}, fakeReserver{}, "")

		w := do(r, http.MethodPost, "/webhooks/payments", notification)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("signature", func(t *testing.T) {
		ledger := &fakeLedger{}
		r, _ := newTestRouter(t, fakeProcessor{payment: approved()}, ledger, fakeReserver{}, "s3cret")

		w := do(r, http.MethodPost, "/webhooks/payments", notification)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = do(r, http.MethodPost, "/webhooks/payments", notification, "X-Signature", Sign("other", []byte(notification)))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Zero(t, ledger.calls)

		w = do(r, http.MethodPost, "/webhooks/payments", notification, "X-Signature", Sign("s3cret", []byte(notification)))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, ledger.calls)
	})
}

func TestCartAndCheckout(t *testing.T) {
	r, carts := newTestRouter(t, fakeProcessor{}, &fakeLedger{}, fakeReserver{}, "")

	w := do(r, http.MethodGet, "/carts/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7,"items":[]}`, w.Body.String())

	w = do(r, http.MethodPut, "/carts/7", `{"items":[{"event_id":1,"fare_class":"full","quantity":2}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, carts[7], 1)

	w = do(r, http.MethodPut, "/carts/7", `{"items":[{"event_id":2,"fare_class":"full","quantity":1}]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, "/carts/7", `{"items":[{"event_id":1,"fare_class":"vip","quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/checkout", `{"user_id":7,"hold_sec":600}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pref-1", resp.IntentID)
	require.Len(t, resp.Reservations, 1)
	assert.Len(t, resp.Reservations[0].TicketIDs, 2)

	w = do(r, http.MethodPost, "/checkout", `{"user_id":8}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"cart is empty"}`, w.Body.String())
}

func TestCheckout_Failures(t *testing.T) {
	t.Run("insufficient stock", func(t *testing.T) {
		r, carts := newTestRouter(t, fakeProcessor{}, &fakeLedger{}, fakeReserver{err: reservation.ErrInsufficientStock}, "")
		carts[7] = []domain.CartItem{{EventID: 1, FareClass: domain.FareFull, Quantity: 1}}

		w := do(r, http.MethodPost, "/checkout", `{"user_id":7}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{"error":"insufficient stock"}`, w.Body.String())
	})

	t.Run("processor down", func(t *testing.T) {
		r, carts := newTestRouter(t, fakeProcessor{err: errors.New("502")}, &fakeLedger{}, fakeReserver{}, "")
		carts[7] = []domain.CartItem{{EventID: 1, FareClass: domain.FareFull, Quantity: 1}}

		w := do(r, http.MethodPost, "/checkout", `{"user_id":7}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestBadParams(t *testing.T) {
	r, _ := newTestRouter(t, fakeProcessor{}, &fakeLedger{}, fakeReserver{}, "")

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/orders/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/tickets/42/cancel", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/carts/abc", "").Code)
}

func TestRespondErr(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("op:%w", reservation.ErrInsufficientStock), http.StatusConflict},
		{fmt.Errorf("op:%w", reservation.ErrTicketNotFound), http.StatusNotFound},
		{fmt.Errorf("op:%w: paid -> expired", reservation.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("op:%w", reservation.ErrInvalidFare), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondErr(c, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondErr(c, fmt.Errorf("op:%w", reservation.RateLimitedError{RetryAfter: "1.2s"}))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}

func TestWriteJSONWithCache(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		writeJSONWithCache(c, http.StatusOK, gin.H{"full_count": 2}, "public, max-age=5")
	})

	w := do(r, http.MethodGet, "/x", "")
	require.Equal(t, http.StatusOK, w.Code)
	tag := w.Header().Get("ETag")
	require.True(t, strings.HasPrefix(tag, `W/"`))

	w = do(r, http.MethodGet, "/x", "", "If-None-Match", `"other", `+strings.TrimPrefix(tag, "W/"))
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}
