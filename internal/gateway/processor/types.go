package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	StatusApproved  = "approved"
	StatusPending   = "pending"
	StatusInProcess = "in_process"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// PaymentID is a payment id sent either as a JSON string or a JSON number.
type PaymentID string

func (id *PaymentID) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*id = ""
		return nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("payment id: %w", err)
		}
		*id = PaymentID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("payment id: %w", err)
	}
	*id = PaymentID(n.String())

	return nil
}

// Payment is the authoritative payment record held by the processor. ID is
// empty when the lookup response does not echo it.
type Payment struct {
	ID       PaymentID `json:"id"`
	Status   string    `json:"status"`
	Metadata Metadata  `json:"metadata"`
}

func (p Payment) Approved() bool { return p.Status == StatusApproved }

// Declined reports whether the buyer will never pay this payment.
func (p Payment) Declined() bool {
	return p.Status == StatusRejected || p.Status == StatusCancelled
}

// Abandoned reports whether the checkout itself was given up. A rejected
// payment is not abandoned: the buyer may still pay the same checkout with
// another attempt.
func (p Payment) Abandoned() bool { return p.Status == StatusCancelled }

// Metadata travels with a payment intent and comes back on the payment.
type Metadata struct {
	UserID    int64      `json:"user_id"`
	LineItems []LineItem `json:"line_items"`
}

// LineItem describes one purchased fare. OrderID points at the reservation
// made during checkout and is empty when none was made.
type LineItem struct {
	EventID   int64  `json:"event_id"`
	FareClass string `json:"fare_class"`
	Quantity  int    `json:"quantity"`
	OrderID   string `json:"order_id,omitempty"`
}

type IntentItem struct {
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Currency  string          `json:"currency_id"`
}

type Intent struct {
	ExternalReference string       `json:"external_reference"`
	Items             []IntentItem `json:"items"`
	Metadata          Metadata     `json:"metadata"`
	NotificationURL   string       `json:"notification_url,omitempty"`
}

type IntentRef struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"init_point"`
}

type TransferRequest struct {
	ReceiverAccountID string          `json:"receiver_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency_id"`
	Description       string          `json:"description"`
	IdempotencyKey    string          `json:"-"`
}

type TransferResult struct {
	TransferID string `json:"id"`
}
