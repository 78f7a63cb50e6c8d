package httpgin

import (
	"time"

	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/service/checkout"
	"github.com/kirinyoku/tixpay/internal/service/reservation"
	"github.com/shopspring/decimal"
)

type CreateReservationRequest struct {
	UserID    int64  `json:"user_id" binding:"required,gt=0"`
	FareClass string `json:"fare_class" binding:"required,oneof=full half"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	HoldSec   int    `json:"hold_sec"`
}

type CartItemInput struct {
	EventID   int64  `json:"event_id" binding:"required,gt=0"`
	FareClass string `json:"fare_class" binding:"required,oneof=full half"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type PutCartRequest struct {
	Items []CartItemInput `json:"items" binding:"dive"`
}

type CheckoutRequest struct {
	UserID  int64 `json:"user_id" binding:"required,gt=0"`
	HoldSec int   `json:"hold_sec"`
}

type CreateProducerRequest struct {
	Name            string  `json:"name" binding:"required"`
	PayoutAccountID *string `json:"payout_account_id"`
}

type SetPayoutAccountRequest struct {
	AccountID string `json:"account_id" binding:"required"`
}

type CreateEventRequest struct {
	ProducerID   int64  `json:"producer_id" binding:"required,gt=0"`
	Title        string `json:"title" binding:"required"`
	StartsAt     string `json:"starts_at" binding:"required"`
	EndsAt       string `json:"ends_at" binding:"required"`
	FullPrice    string `json:"full_price" binding:"required"`
	HalfPrice    string `json:"half_price" binding:"required"`
	FullCapacity int64  `json:"full_capacity" binding:"gte=0"`
	HalfCapacity int64  `json:"half_capacity" binding:"gte=0"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type EventResponse struct {
	ID           int64     `json:"id"`
	ProducerID   int64     `json:"producer_id"`
	Title        string    `json:"title"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	FullPrice    string    `json:"full_price"`
	HalfPrice    string    `json:"half_price"`
	FullCapacity int64     `json:"full_capacity"`
	HalfCapacity int64     `json:"half_capacity"`
}

type TicketResponse struct {
	ID        string     `json:"id"`
	OrderID   string     `json:"order_id"`
	EventID   int64      `json:"event_id"`
	UserID    int64      `json:"user_id"`
	FareClass string     `json:"fare_class"`
	UnitPrice string     `json:"unit_price"`
	Status    string     `json:"status"`
	PaymentID *string    `json:"payment_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type ReservationResponse struct {
	OrderID   string    `json:"order_id"`
	EventID   int64     `json:"event_id"`
	FareClass string    `json:"fare_class"`
	ExpiresAt time.Time `json:"expires_at"`
	TicketIDs []string  `json:"ticket_ids"`
}

type CartResponse struct {
	UserID    int64             `json:"user_id"`
	Items     []domain.CartItem `json:"items"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
}

type CheckoutResponse struct {
	ExternalReference string                `json:"external_reference"`
	IntentID          string                `json:"intent_id"`
	CheckoutURL       string                `json:"checkout_url"`
	Reservations      []ReservationResponse `json:"reservations"`
}

type OrderResponse struct {
	OrderID string           `json:"order_id"`
	Tickets []TicketResponse `json:"tickets"`
}

type CancelTicketResponse struct {
	TicketID string `json:"ticket_id"`
	Restored bool   `json:"restored"`
}

type InventoryResponse struct {
	EventID  int64                  `json:"event_id"`
	Balanced bool                   `json:"balanced"`
	Lines    []domain.InventoryLine `json:"lines"`
}

type WebhookResponse struct {
	Outcome string `json:"outcome"`
}

type CreateProducerResponse struct {
	ProducerID int64 `json:"producer_id"`
}

type CreateEventResponse struct {
	EventID int64 `json:"event_id"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func toEventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		ProducerID:   e.ProducerID,
		Title:        e.Title,
		StartsAt:     e.Starts,
		EndsAt:       e.Ends,
		FullPrice:    e.FullPrice.StringFixed(2),
		HalfPrice:    e.HalfPrice.StringFixed(2),
		FullCapacity: e.FullCapacity,
		HalfCapacity: e.HalfCapacity,
	}
}

func toTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:        t.ID.String(),
		OrderID:   t.OrderID.String(),
		EventID:   t.EventID,
		UserID:    t.UserID,
		FareClass: string(t.FareClass),
		UnitPrice: t.UnitPrice.StringFixed(2),
		Status:    string(t.Status),
		PaymentID: t.PaymentID,
		ExpiresAt: t.ExpiresAt,
	}
}

func toReservationResponse(r reservation.Reservation) ReservationResponse {
	ids := make([]string, 0, len(r.Tickets))
	for _, t := range r.Tickets {
		ids = append(ids, t.ID.String())
	}

	return ReservationResponse{
		OrderID:   r.OrderID.String(),
		EventID:   r.EventID,
		FareClass: string(r.FareClass),
		ExpiresAt: r.ExpiresAt,
		TicketIDs: ids,
	}
}

func toCartResponse(c domain.Cart) CartResponse {
	out := CartResponse{UserID: c.UserID, Items: c.Items}
	if out.Items == nil {
		out.Items = []domain.CartItem{}
	}
	if !c.UpdatedAt.IsZero() {
		at := c.UpdatedAt
		out.UpdatedAt = &at
	}
	return out
}

func toCheckoutResponse(r checkout.Result) CheckoutResponse {
	out := CheckoutResponse{
		ExternalReference: r.ExternalReference,
		IntentID:          r.IntentID,
		CheckoutURL:       r.CheckoutURL,
		Reservations:      make([]ReservationResponse, 0, len(r.Reservations)),
	}
	for _, res := range r.Reservations {
		out.Reservations = append(out.Reservations, toReservationResponse(res))
	}
	return out
}

func toOrderResponse(o domain.OrderWithTickets) OrderResponse {
	out := OrderResponse{OrderID: o.OrderID.String(), Tickets: make([]TicketResponse, 0, len(o.Tickets))}
	for _, t := range o.Tickets {
		out.Tickets = append(out.Tickets, toTicketResponse(t))
	}
	return out
}

func toInventoryResponse(r domain.InventoryReport) InventoryResponse {
	balanced := true
	for _, l := range r.Lines {
		balanced = balanced && l.Balanced()
	}
	return InventoryResponse{EventID: r.EventID, Balanced: balanced, Lines: r.Lines}
}

func (r CreateEventRequest) toDomain() (domain.Event, string) {
	starts, err := parseRFC3339(r.StartsAt)
	if err != nil {
		return domain.Event{}, "invalid starts_at (RFC3339)"
	}

	ends, err := parseRFC3339(r.EndsAt)
	if err != nil {
		return domain.Event{}, "invalid ends_at (RFC3339)"
	}

	full, err := decimal.NewFromString(r.FullPrice)
	if err != nil {
		return domain.Event{}, "invalid full_price"
	}

	half, err := decimal.NewFromString(r.HalfPrice)
	if err != nil {
		return domain.Event{}, "invalid half_price"
	}

	return domain.Event{
		ProducerID:   r.ProducerID,
		Title:        r.Title,
		Starts:       starts,
		Ends:         ends,
		FullPrice:    full,
		HalfPrice:    half,
		FullCapacity: r.FullCapacity,
		HalfCapacity: r.HalfCapacity,
	}, ""
}
