package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirinyoku/tixpay/internal/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, attempts int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL:     srv.URL,
		AccessToken: "tok",
		Timeout:     time.Second,
		MaxAttempts: attempts,
		Backoff:     time.Millisecond,
	})
}

func TestGetPayment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/pay-1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"id":"pay-1","status":"approved","metadata":{"user_id":7,
			"line_items":[{"event_id":3,"fare_class":"half","quantity":2,"order_id":"o-1"}]}}`))
	}, 1)

	p, err := c.GetPayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.True(t, p.Approved())
	assert.Equal(t, int64(7), p.Metadata.UserID)
	require.Len(t, p.Metadata.LineItems, 1)
	assert.Equal(t, LineItem{EventID: 3, FareClass: "half", Quantity: 2, OrderID: "o-1"}, p.Metadata.LineItems[0])
}

func TestGetPayment_IDShapes(t *testing.T) {
	cases := map[string]struct {
		body string
		want PaymentID
	}{
		"numeric id": {body: `{"id":123456,"status":"approved"}`, want: "123456"},
		"string id":  {body: `{"id":" 987 ","status":"approved"}`, want: "987"},
		"no id":      {body: `{"status":"approved","metadata":{"user_id":7}}`, want: ""},
		"null id":    {body: `{"id":null,"status":"approved"}`, want: ""},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}, 1)

			p, err := c.GetPayment(context.Background(), "123456")
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.ID)
			assert.True(t, p.Approved())
		})
	}
}

func TestGetPayment_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}, 3)

	_, err := c.GetPayment(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errs.Is(err, ErrPaymentNotFound))
	assert.True(t, errs.IsPermanent(err))
	assert.False(t, errs.IsTransient(err))
}

func TestGetPayment_Unavailable(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, 2)

	_, err := c.GetPayment(context.Background(), "pay-1")
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
	assert.Equal(t, int32(2), hits.Load())
}

func TestCreateTransfer_RetriesWithSameKey(t *testing.T) {
	var hits atomic.Int32
	keys := make(chan string, 3)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("X-Idempotency-Key")
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acct-9", body["receiver_id"])
		assert.Equal(t, "90", body["amount"])
		assert.Equal(t, "BRL", body["currency_id"])

		_, _ = w.Write([]byte(`{"id":"tr-1"}`))
	}, 3)

	res, err := c.CreateTransfer(context.Background(), TransferRequest{
		ReceiverAccountID: "acct-9",
		Amount:            decimal.NewFromInt(90),
		Currency:          "BRL",
		Description:       "settlement",
		IdempotencyKey:    "payout-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "tr-1", res.TransferID)

	close(keys)
	for k := range keys {
		assert.Equal(t, "payout-abc", k)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestCreateTransfer_Rejected(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"message":"receiver blocked"}`, http.StatusUnprocessableEntity)
	}, 3)

	_, err := c.CreateTransfer(context.Background(), TransferRequest{
		ReceiverAccountID: "acct-9",
		Amount:            decimal.NewFromInt(10),
		Currency:          "BRL",
		IdempotencyKey:    "payout-x",
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, ErrTransferFailed))
	assert.Contains(t, err.Error(), "receiver blocked")
	assert.Equal(t, int32(1), hits.Load())
}

func TestCreatePaymentIntent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "ref-1", r.Header.Get("X-Idempotency-Key"))

		var in Intent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, int64(7), in.Metadata.UserID)

		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://pay.example/pref-1"}`))
	}, 1)

	ref, err := c.CreatePaymentIntent(context.Background(), Intent{
		ExternalReference: "ref-1",
		Items:             []IntentItem{{Title: "Show", Quantity: 1, UnitPrice: decimal.NewFromInt(50), Currency: "BRL"}},
		Metadata:          Metadata{UserID: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, "pref-1", ref.ID)
	assert.Equal(t, "https://pay.example/pref-1", ref.CheckoutURL)
}
