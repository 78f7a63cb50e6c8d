package service

import (
	"log/slog"

	"github.com/kirinyoku/tixpay/internal/clock"
	"github.com/kirinyoku/tixpay/internal/gateway/processor"
	postgres "github.com/kirinyoku/tixpay/internal/repository/postgres"
	redis "github.com/kirinyoku/tixpay/internal/repository/redis"
	"github.com/kirinyoku/tixpay/internal/service/admin"
	"github.com/kirinyoku/tixpay/internal/service/checkout"
	"github.com/kirinyoku/tixpay/internal/service/orders"
	"github.com/kirinyoku/tixpay/internal/service/query"
	"github.com/kirinyoku/tixpay/internal/service/reservation"
	"github.com/kirinyoku/tixpay/internal/service/webhook"
)

type Services struct {
	Reservation *reservation.Service
	Query       *query.Service
	Admin       *admin.Service
	Orders      *orders.Service
	Checkout    *checkout.Service
	Webhook     *webhook.Ingestor
}

type Config struct {
	Reservation reservation.Config
	Query       query.Config
	Checkout    checkout.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redis.InventoryPubSub,
	limiter *redis.SlidingWindowLimiter,
	payments *processor.Client,
	notifier webhook.Notifier,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Services {
	res := reservation.New(store, cache, pubsub, limiter, clk, logger, cfg.Reservation)
	q := query.New(store, cache, cfg.Query)

	return &Services{
		Reservation: res,
		Query:       q,
		Admin:       admin.New(store, cache, pubsub),
		Orders:      orders.New(store),
		Checkout:    checkout.New(store.Carts(), q, res, payments, clk, logger, cfg.Checkout),
		Webhook:     webhook.New(payments, res, notifier, logger),
	}
}
