// Package checkout keeps carts and turns them into reservations plus a
// payment intent at the processor.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixpay/internal/clock"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/gateway/processor"
	"github.com/kirinyoku/tixpay/internal/repository"
	"github.com/kirinyoku/tixpay/internal/service/reservation"
)

type Carts interface {
	Put(ctx context.Context, userID int64, items []domain.CartItem, now time.Time) error
	Get(ctx context.Context, userID int64) (*domain.Cart, error)
}

type Events interface {
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
}

type Reserver interface {
	ReserveCart(ctx context.Context, userID int64, items []domain.CartItem, hold time.Duration) ([]reservation.Reservation, error)
	ReleaseOrders(ctx context.Context, orderIDs []uuid.UUID) (int, error)
}

type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, in processor.Intent) (*processor.IntentRef, error)
}

type Config struct {
	MaxItems  int
	Currency  string
	NotifyURL string
}

type Service struct {
	carts    Carts
	events   Events
	reserver Reserver
	intents  IntentCreator
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
}

func New(carts Carts, events Events, reserver Reserver, intents IntentCreator, clk clock.Clock, logger *slog.Logger, cfg Config) *Service {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 20
	}

	if cfg.Currency == "" {
		cfg.Currency = "BRL"
	}

	if clk == nil {
		clk = clock.NewReal()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		carts:    carts,
		events:   events,
		reserver: reserver,
		intents:  intents,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
	}
}

// PutCart replaces the cart of a user. Lines for the same event and fare are
// merged.
//
// Returns:
//   - *domain.Cart: the stored cart.
//   - error: checkout.ErrInvalidItem for a bad fare or quantity.
//   - error: checkout.ErrTooManyItems when the cart has too many lines.
//   - error: the event lookup error when a line names an unknown event.
func (s *Service) PutCart(ctx context.Context, userID int64, items []domain.CartItem) (*domain.Cart, error) {
	const op = "service.checkout.PutCart"

	merged, err := s.mergeItems(items)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	for _, it := range merged {
		if _, err := s.events.GetEvent(ctx, it.EventID); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	now := s.clock.Now()
	if err := s.carts.Put(ctx, userID, merged, now); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &domain.Cart{UserID: userID, Items: merged, UpdatedAt: now}, nil
}

// GetCart returns the cart of a user; a user without one gets an empty cart.
func (s *Service) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	const op = "service.checkout.GetCart"

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return c, nil
}

type Result struct {
	ExternalReference string
	IntentID          string
	CheckoutURL       string
	Reservations      []reservation.Reservation
}

// Checkout reserves every line of the user's cart and opens a payment intent
// whose metadata carries the reservation ids. The cart itself is removed when
// the payment is ingested.
//
// If the processor cannot open the intent, the reservations are released
// right away instead of waiting for the hold to lapse.
//
// Returns:
//   - *Result: the checkout URL and the reservations made.
//   - error: checkout.ErrEmptyCart if the cart has no lines.
//   - error: reservation.ErrInsufficientStock if a line cannot be served.
//   - error: checkout.ErrPaymentUnavailable if the intent could not be opened.
func (s *Service) Checkout(ctx context.Context, userID int64, hold time.Duration) (*Result, error) {
	const op = "service.checkout.Checkout"

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if len(cart.Items) == 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrEmptyCart)
	}

	reserved, err := s.reserver.ReserveCart(ctx, userID, cart.Items, hold)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	intent := s.intent(ctx, userID, reserved)

	ref, err := s.intents.CreatePaymentIntent(ctx, intent)
	if err != nil {
		s.release(ctx, reserved)
		return nil, fmt.Errorf("%s:%w: %v", op, ErrPaymentUnavailable, err)
	}

	s.logger.Info("checkout opened",
		"user_id", userID,
		"external_reference", intent.ExternalReference,
		"intent_id", ref.ID,
		"orders", len(reserved),
	)

	return &Result{
		ExternalReference: intent.ExternalReference,
		IntentID:          ref.ID,
		CheckoutURL:       ref.CheckoutURL,
		Reservations:      reserved,
	}, nil
}

func (s *Service) intent(ctx context.Context, userID int64, reserved []reservation.Reservation) processor.Intent {
	in := processor.Intent{
		ExternalReference: "checkout-" + uuid.NewString(),
		Metadata:          processor.Metadata{UserID: userID},
		NotificationURL:   s.cfg.NotifyURL,
	}

	for _, r := range reserved {
		title := fmt.Sprintf("event %d", r.EventID)
		if e, err := s.events.GetEvent(ctx, r.EventID); err == nil {
			title = e.Title
		}

		in.Items = append(in.Items, processor.IntentItem{
			Title:     fmt.Sprintf("%s (%s)", title, r.FareClass),
			Quantity:  len(r.Tickets),
			UnitPrice: r.Tickets[0].UnitPrice,
			Currency:  s.cfg.Currency,
		})

		in.Metadata.LineItems = append(in.Metadata.LineItems, processor.LineItem{
			EventID:   r.EventID,
			FareClass: string(r.FareClass),
			Quantity:  len(r.Tickets),
			OrderID:   r.OrderID.String(),
		})
	}

	return in
}

func (s *Service) release(ctx context.Context, reserved []reservation.Reservation) {
	ids := make([]uuid.UUID, 0, len(reserved))
	for _, r := range reserved {
		ids = append(ids, r.OrderID)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	n, err := s.reserver.ReleaseOrders(ctx, ids)
	if err != nil {
		s.logger.Error("failed to release reservations, holds will lapse", "orders", len(ids), "error", err)
		return
	}

	s.logger.Warn("reservations released after failed checkout", "orders", len(ids), "tickets", n)
}

func (s *Service) mergeItems(items []domain.CartItem) ([]domain.CartItem, error) {
	type key struct {
		event int64
		fare  domain.FareClass
	}

	var (
		out = make([]domain.CartItem, 0, len(items))
		at  = make(map[key]int)
	)

	for _, it := range items {
		if it.EventID <= 0 || it.Quantity <= 0 || !it.FareClass.Valid() {
			return nil, fmt.Errorf("%w: event %d, fare %q, quantity %d", ErrInvalidItem, it.EventID, it.FareClass, it.Quantity)
		}

		k := key{it.EventID, it.FareClass}
		if i, ok := at[k]; ok {
			out[i].Quantity += it.Quantity
			continue
		}

		at[k] = len(out)
		out = append(out, it)
	}

	if len(out) > s.cfg.MaxItems {
		return nil, ErrTooManyItems
	}

	return out, nil
}
