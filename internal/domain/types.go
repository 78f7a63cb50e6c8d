package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type FareClass string

const (
	FareFull FareClass = "full"
	FareHalf FareClass = "half"
)

func (f FareClass) Valid() bool {
	return f == FareFull || f == FareHalf
}

type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketPaid      TicketStatus = "paid"
	TicketCancelled TicketStatus = "cancelled"
	TicketRefused   TicketStatus = "refused"
	TicketExpired   TicketStatus = "expired"
	TicketRefunded  TicketStatus = "refunded"
)

type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutPaid     PayoutStatus = "paid"
	PayoutError    PayoutStatus = "error"
	PayoutRefunded PayoutStatus = "refunded"
)

type Producer struct {
	ID              int64
	Name            string
	PayoutAccountID *string
}

type Event struct {
	ID           int64
	ProducerID   int64
	Title        string
	Starts       time.Time
	Ends         time.Time
	FullPrice    decimal.Decimal
	HalfPrice    decimal.Decimal
	FullCapacity int64
	HalfCapacity int64
	FullCount    int64
	HalfCount    int64
}

// Price returns the unit price of the given fare class.
func (e Event) Price(fare FareClass) decimal.Decimal {
	if fare == FareHalf {
		return e.HalfPrice
	}
	return e.FullPrice
}

// EventCounts is the inventory ledger view of one event.
type EventCounts struct {
	EventID   int64 `json:"event_id"`
	FullCount int64 `json:"full_count"`
	HalfCount int64 `json:"half_count"`
}

// InventoryLine reports, for one fare class, the counter next to the number
// of tickets currently consuming inventory. Retired counts units that left
// the ledger for good: refunds and cancellations after the event started.
type InventoryLine struct {
	FareClass FareClass `json:"fare_class"`
	Capacity  int64     `json:"capacity"`
	Available int64     `json:"available"`
	Pending   int64     `json:"pending"`
	Paid      int64     `json:"paid"`
	Retired   int64     `json:"retired"`
}

// Balanced reports whether every minted unit is accounted for.
func (l InventoryLine) Balanced() bool {
	return l.Available+l.Pending+l.Paid+l.Retired == l.Capacity
}

type InventoryReport struct {
	EventID int64           `json:"event_id"`
	Lines   []InventoryLine `json:"lines"`
}

type Payout struct {
	ID          uuid.UUID
	ProducerID  int64
	OrderID     uuid.UUID
	PaymentID   string
	Amount      decimal.Decimal
	Currency    string
	ReleaseDate time.Time
	Status      PayoutStatus
	TransferID  *string
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Due reports whether the payout may be settled at now.
func (p Payout) Due(now time.Time) bool {
	return p.Status == PayoutPending && !now.Before(p.ReleaseDate)
}

// SchedulerLock is the persisted lease row of a periodic job.
type SchedulerLock struct {
	JobName     string
	Running     bool
	LastUpdated time.Time
	Holder      uuid.UUID
}

// Held reports whether the lease is active at now for the given staleness window.
func (l SchedulerLock) Held(now time.Time, staleness time.Duration) bool {
	return l.Running && now.Sub(l.LastUpdated) < staleness
}

type CartItem struct {
	EventID   int64     `json:"event_id"`
	FareClass FareClass `json:"fare_class"`
	Quantity  int       `json:"quantity"`
}

type Cart struct {
	UserID    int64
	Items     []CartItem
	UpdatedAt time.Time
}

type OrderWithTickets struct {
	OrderID uuid.UUID
	Tickets []Ticket
}
