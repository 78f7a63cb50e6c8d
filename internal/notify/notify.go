// Package notify announces issued tickets on Redis pub/sub. Delivery to the
// buyer is done by whoever subscribes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirinyoku/tixpay/internal/clock"
	"github.com/kirinyoku/tixpay/internal/domain"
	redisrepo "github.com/kirinyoku/tixpay/internal/repository/redis"
	"github.com/redis/go-redis/v9"
)

type TicketIssuedMsg struct {
	Type      string    `json:"type"`
	TicketID  string    `json:"ticket_id"`
	OrderID   string    `json:"order_id"`
	UserID    int64     `json:"user_id"`
	EventID   int64     `json:"event_id"`
	FareClass string    `json:"fare_class"`
	PaymentID string    `json:"payment_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}

type Publisher struct {
	rdb     *redis.Client
	channel string
	clock   clock.Clock
}

func NewPublisher(rdb *redis.Client, clk clock.Clock) *Publisher {
	if clk == nil {
		clk = clock.NewReal()
	}

	return &Publisher{
		rdb:     rdb,
		channel: redisrepo.ChannelTicketsIssued(),
		clock:   clk,
	}
}

func (p *Publisher) TicketIssued(ctx context.Context, t domain.Ticket) error {
	const op = "notify.Publisher.TicketIssued"

	msg := TicketIssuedMsg{
		Type:      "ticket_issued",
		TicketID:  t.ID.String(),
		OrderID:   t.OrderID.String(),
		UserID:    t.UserID,
		EventID:   t.EventID,
		FareClass: string(t.FareClass),
		IssuedAt:  p.clock.Now(),
	}
	if t.PaymentID != nil {
		msg.PaymentID = *t.PaymentID
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := p.rdb.Publish(ctx, p.channel, string(b)).Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
