// Package webhook ingests payment notifications from the processor.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/errs"
	"github.com/kirinyoku/tixpay/internal/gateway/processor"
	"github.com/kirinyoku/tixpay/internal/metrics"
	postgresrepo "github.com/kirinyoku/tixpay/internal/repository/postgres"
	"github.com/kirinyoku/tixpay/internal/service/reservation"
)

// Outcome tells how a notification was handled. Every outcome is
// acknowledged to the processor.
type Outcome string

const (
	OutcomeRejected  Outcome = "rejected"
	OutcomeIgnored   Outcome = "ignored"
	OutcomePending   Outcome = "pending"
	OutcomeRefused   Outcome = "refused"
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeFailed is a ledger failure redelivery cannot fix. Nothing was
	// recorded and an operator has to replay the payment.
	OutcomeFailed Outcome = "failed"
)

// ErrUnavailable wraps failures where redelivery is wanted: the processor or
// the database could not be reached, or the ledger lost a serialization race.
var ErrUnavailable = errors.New("webhook dependency unavailable")

type PaymentGetter interface {
	GetPayment(ctx context.Context, id string) (*processor.Payment, error)
}

type Ledger interface {
	ApplyApprovedPayment(ctx context.Context, p reservation.ApprovedPayment) (*reservation.PaymentResult, error)
	RefusePayment(ctx context.Context, paymentID, status string, orderIDs []uuid.UUID) (int, bool, error)
}

type Notifier interface {
	TicketIssued(ctx context.Context, t domain.Ticket) error
}

type Ingestor struct {
	payments PaymentGetter
	ledger   Ledger
	notifier Notifier
	logger   *slog.Logger

	notifyTimeout time.Duration
	wg            sync.WaitGroup
}

func New(payments PaymentGetter, ledger Ledger, notifier Notifier, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Ingestor{
		payments:      payments,
		ledger:        ledger,
		notifier:      notifier,
		logger:        logger.With("component", "webhook"),
		notifyTimeout: 10 * time.Second,
	}
}

type notification struct {
	Type string `json:"type"`
	Data struct {
		ID processor.PaymentID `json:"id"`
	} `json:"data"`
}

// HandlePaymentNotification ingests one notification body.
//
// The authoritative payment is always fetched from the processor; the body
// only carries its id, which is also the idempotency key. Approved payments
// become paid tickets and payouts, cancelled payments release their
// reservations. Redelivery of the same payment is a no-op.
//
// Returns:
//   - Outcome: how the notification was handled.
//   - error: wraps ErrUnavailable when the processor or the database failed
//     and the notification should be redelivered. The outcome is then empty.
func (i *Ingestor) HandlePaymentNotification(ctx context.Context, raw []byte) (Outcome, error) {
	const op = "service.webhook.HandlePaymentNotification"

	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return i.done(OutcomeRejected, "malformed notification", "error", err), nil
	}

	if n.Type != "payment" {
		return i.done(OutcomeIgnored, "notification ignored", "type", n.Type), nil
	}

	id := string(n.Data.ID)
	if id == "" {
		return i.done(OutcomeRejected, "notification without payment id"), nil
	}

	log := i.logger.With("payment_id", id)

	p, err := i.payments.GetPayment(ctx, id)
	if err != nil {
		if errs.Is(err, processor.ErrPaymentNotFound) || errs.IsPermanent(err) {
			return i.done(OutcomeRejected, "payment lookup rejected", "payment_id", id, "error", err), nil
		}
		metrics.Webhook("unavailable")
		log.Warn("payment lookup failed, asking for redelivery", "error", err)
		return "", fmt.Errorf("%s:%w: %v", op, ErrUnavailable, err)
	}

	if p.ID != "" && string(p.ID) != id {
		return i.done(OutcomeRejected, "payment id mismatch", "payment_id", id, "lookup_id", string(p.ID)), nil
	}

	switch {
	case p.Declined():
		return i.refuse(ctx, log, id, p)
	case !p.Approved():
		return i.done(OutcomePending, "payment not final", "payment_id", id, "status", p.Status), nil
	}

	in, err := approvedPayment(id, p)
	if err != nil {
		log.Error("approved payment with unusable metadata, manual review required", "error", err)
		return i.done(OutcomeRejected, "payment metadata rejected", "payment_id", id), nil
	}

	res, err := i.ledger.ApplyApprovedPayment(ctx, in)
	if err != nil {
		if errors.Is(err, reservation.ErrInvalidFare) || errors.Is(err, reservation.ErrInvalidQuantity) {
			log.Error("approved payment with invalid line items, manual review required", "error", err)
			return i.done(OutcomeRejected, "payment line items rejected", "payment_id", id), nil
		}
		return i.ledgerFailure(op, log, "payment ingestion failed", err)
	}

	if res.AlreadyProcessed {
		return i.done(OutcomeDuplicate, "payment already processed", "payment_id", id), nil
	}

	i.notify(ctx, res.Issued)

	return i.done(OutcomeProcessed, "payment processed",
		"payment_id", id,
		"issued", len(res.Issued),
		"payouts", len(res.Payouts),
		"unfulfilled", len(res.Unfulfilled),
	), nil
}

// refuse records a declined payment. Only a cancelled checkout gives its
// reservations back; after a rejection the buyer may retry with another card
// while the holds are still live, so those are left to lapse.
func (i *Ingestor) refuse(ctx context.Context, log *slog.Logger, id string, p *processor.Payment) (Outcome, error) {
	const op = "service.webhook.refuse"

	var release []uuid.UUID
	if p.Abandoned() {
		release, _ = orderIDs(p.Metadata.LineItems)
	}

	n, claimed, err := i.ledger.RefusePayment(ctx, id, p.Status, release)
	if err != nil {
		return i.ledgerFailure(op, log, "payment refusal failed", err)
	}

	if !claimed {
		return i.done(OutcomeDuplicate, "payment already processed", "payment_id", id), nil
	}

	return i.done(OutcomeRefused, "payment refused", "payment_id", id, "status", p.Status, "released", n), nil
}

// ledgerFailure asks for redelivery only when a later attempt can succeed.
// Anything else is acknowledged so the processor stops retrying, and left for
// an operator.
func (i *Ingestor) ledgerFailure(op string, log *slog.Logger, msg string, err error) (Outcome, error) {
	if retryable(err) {
		metrics.Webhook("unavailable")
		log.Warn(msg+", asking for redelivery", "error", err)
		return "", fmt.Errorf("%s:%w: %v", op, ErrUnavailable, err)
	}

	metrics.Webhook(string(OutcomeFailed))
	log.Error(msg+", operator intervention required", "error", err, "alert", true)

	return OutcomeFailed, nil
}

func retryable(err error) bool {
	switch {
	case errs.IsTransient(err),
		postgresrepo.IsConnError(err),
		postgresrepo.IsRetryable(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// notify announces issued tickets once the transaction committed. It never
// blocks the acknowledgement and its failures are only logged.
func (i *Ingestor) notify(ctx context.Context, tickets []domain.Ticket) {
	if i.notifier == nil || len(tickets) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, i.notifyTimeout)
		defer cancel()

		for _, t := range tickets {
			if err := i.notifier.TicketIssued(ctx, t); err != nil {
				i.logger.Warn("ticket notification failed", "ticket_id", t.ID, "error", err)
			}
		}
	}()
}

// Wait blocks until in-flight notifications finished.
func (i *Ingestor) Wait() {
	i.wg.Wait()
}

func (i *Ingestor) done(o Outcome, msg string, args ...any) Outcome {
	metrics.Webhook(string(o))

	if o == OutcomeRejected {
		i.logger.Warn(msg, args...)
	} else {
		i.logger.Info(msg, args...)
	}

	return o
}

func approvedPayment(id string, p *processor.Payment) (reservation.ApprovedPayment, error) {
	if p.Metadata.UserID <= 0 {
		return reservation.ApprovedPayment{}, errors.New("metadata without user id")
	}

	if len(p.Metadata.LineItems) == 0 {
		return reservation.ApprovedPayment{}, errors.New("metadata without line items")
	}

	_, parsed := orderIDs(p.Metadata.LineItems)

	items := make([]reservation.PaidItem, 0, len(p.Metadata.LineItems))
	for k, li := range p.Metadata.LineItems {
		items = append(items, reservation.PaidItem{
			EventID:   li.EventID,
			FareClass: domain.FareClass(li.FareClass),
			Quantity:  li.Quantity,
			OrderID:   parsed[k],
		})
	}

	return reservation.ApprovedPayment{
		PaymentID: id,
		UserID:    p.Metadata.UserID,
		Items:     items,
	}, nil
}

// orderIDs returns the distinct reservation ids referenced by the line items
// and, per line item, its parsed id. Missing or malformed ids map to uuid.Nil.
func orderIDs(items []processor.LineItem) ([]uuid.UUID, []uuid.UUID) {
	var distinct []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	parsed := make([]uuid.UUID, len(items))

	for k, li := range items {
		id, err := uuid.Parse(li.OrderID)
		if err != nil {
			continue
		}
		parsed[k] = id

		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			distinct = append(distinct, id)
		}
	}

	return distinct, parsed
}
