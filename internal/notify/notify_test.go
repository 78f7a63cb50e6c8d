package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/kirinyoku/tixpay/internal/clock"
	"github.com/kirinyoku/tixpay/internal/domain"
	redisrepo "github.com/kirinyoku/tixpay/internal/repository/redis"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_TicketIssued(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tk := domain.NewPaidTicket(7, 1, uuid.New(), domain.FareHalf, decimal.NewFromInt(25), "pay-1", now)

	want, err := json.Marshal(TicketIssuedMsg{
		Type:      "ticket_issued",
		TicketID:  tk.ID.String(),
		OrderID:   tk.OrderID.String(),
		UserID:    7,
		EventID:   1,
		FareClass: "half",
		PaymentID: "pay-1",
		IssuedAt:  now,
	})
	require.NoError(t, err)

	db, mock := redismock.NewClientMock()
	p := NewPublisher(db, clock.NewMock(now))

	mock.ExpectPublish(redisrepo.ChannelTicketsIssued(), string(want)).SetVal(1)
	require.NoError(t, p.TicketIssued(context.Background(), tk))

	mock.ExpectPublish(redisrepo.ChannelTicketsIssued(), string(want)).SetErr(errors.New("closed"))
	assert.Error(t, p.TicketIssued(context.Background(), tk))

	assert.NoError(t, mock.ExpectationsWereMet())
}
