// Package processor talks to the external payment processor: payment lookup,
// checkout intents and producer transfers.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	cr "github.com/cockroachdb/errors"
	"github.com/kirinyoku/tixpay/internal/errs"
)

var (
	ErrPaymentNotFound = cr.New("payment not found")
	ErrTransferFailed  = cr.New("transfer failed")
)

type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	// MaxAttempts bounds transport-level retries of one call. Every attempt
	// carries the same idempotency key.
	MaxAttempts int
	Backoff     time.Duration
}

type Client struct {
	baseURL     string
	token       string
	maxAttempts int
	backoff     time.Duration
	hc          *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.AccessToken,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		hc:          &http.Client{Timeout: cfg.Timeout},
	}
}

// GetPayment fetches a payment by id.
//
// Returns:
//   - error: ErrPaymentNotFound (permanent) if the processor does not know the id.
//   - error: marked errs.ErrTransient when the processor could not be reached.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	const op = "processor.Client.GetPayment"

	var p Payment
	status, err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil, "", &p)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, errs.Permanent(cr.Mark(err, ErrPaymentNotFound), op)
		}
		return nil, errs.Wrap(err, op)
	}

	return &p, nil
}

// CreatePaymentIntent opens a checkout for the given items.
func (c *Client) CreatePaymentIntent(ctx context.Context, in Intent) (*IntentRef, error) {
	const op = "processor.Client.CreatePaymentIntent"

	var ref IntentRef
	if _, err := c.do(ctx, http.MethodPost, "/checkout/preferences", in, in.ExternalReference, &ref); err != nil {
		return nil, errs.Wrap(err, op)
	}

	return &ref, nil
}

// CreateTransfer moves funds to a producer account. The idempotency key makes
// a retried or replayed request settle at most once on the processor side.
//
// Returns:
//   - error: wraps ErrTransferFailed on any failure.
func (c *Client) CreateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	const op = "processor.Client.CreateTransfer"

	if req.IdempotencyKey == "" {
		return nil, cr.Mark(errs.Permanent(cr.New("missing idempotency key"), op), ErrTransferFailed)
	}

	var res TransferResult
	if _, err := c.do(ctx, http.MethodPost, "/v1/transfers", req, req.IdempotencyKey, &res); err != nil {
		return nil, cr.Mark(errs.Wrap(err, op), ErrTransferFailed)
	}

	if res.TransferID == "" {
		return nil, cr.Mark(errs.Permanent(cr.New("response without transfer id"), op), ErrTransferFailed)
	}

	return &res, nil
}

// do performs one logical call, retrying transient failures with exponential
// backoff. It returns the last HTTP status seen, zero when none was received.
func (c *Client) do(ctx context.Context, method, path string, in any, idemKey string, out any) (int, error) {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, errs.Permanent(err, "encode request")
		}
		body = b
	}

	var (
		status int
		err    error
	)

	backoff := c.backoff
	for attempt := 1; ; attempt++ {
		status, err = c.once(ctx, method, path, body, idemKey, out)
		if err == nil || !errs.IsTransient(err) || attempt >= c.maxAttempts {
			return status, err
		}

		select {
		case <-ctx.Done():
			return status, errs.Transient(ctx.Err(), "retry aborted")
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, idemKey string, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, errs.Permanent(err, "build request")
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idemKey != "" {
		req.Header.Set("X-Idempotency-Key", idemKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, errs.Transient(err, fmt.Sprintf("%s %s", method, path))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, errs.Transient(err, "read response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return resp.StatusCode, errs.Transient(statusErr(resp.StatusCode, raw), fmt.Sprintf("%s %s", method, path))
	case resp.StatusCode >= 400:
		return resp.StatusCode, errs.Permanent(statusErr(resp.StatusCode, raw), fmt.Sprintf("%s %s", method, path))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, errs.Permanent(err, "decode response")
		}
	}

	return resp.StatusCode, nil
}

func statusErr(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return cr.Newf("processor answered %d: %s", code, msg)
}
