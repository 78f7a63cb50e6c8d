package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kirinyoku/tixpay/internal/clock"
	"github.com/kirinyoku/tixpay/internal/config"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/gateway/processor"
	"github.com/kirinyoku/tixpay/internal/migrations"
	"github.com/kirinyoku/tixpay/internal/notify"
	"github.com/kirinyoku/tixpay/internal/postgres"
	"github.com/kirinyoku/tixpay/internal/redis"
	postgresrepo "github.com/kirinyoku/tixpay/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tixpay/internal/repository/redis"
	"github.com/kirinyoku/tixpay/internal/scheduler"
	"github.com/kirinyoku/tixpay/internal/service"
	"github.com/kirinyoku/tixpay/internal/service/checkout"
	"github.com/kirinyoku/tixpay/internal/service/expiry"
	"github.com/kirinyoku/tixpay/internal/service/lock"
	"github.com/kirinyoku/tixpay/internal/service/payout"
	"github.com/kirinyoku/tixpay/internal/service/reservation"
	httpgin "github.com/kirinyoku/tixpay/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	rdb        *goredis.Client
	cache      *redisrepo.Cache
	pubsub     *redisrepo.InventoryPubSub
	services   *service.Services
	scheduler  *scheduler.Scheduler
	httpServer *http.Server
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := postgres.New(ctx, postgres.Config{
		DSN:              cfg.Postgres.DSN(),
		MaxConns:         cfg.Postgres.MaxConns,
		StatementTimeout: cfg.Postgres.StatementTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	if cfg.Postgres.Migrate {
		if err := migrations.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	rdb, err := redis.New(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	clk := clock.NewReal()

	// Repositories
	store := postgresrepo.NewStore(pool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewInventoryPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "reserve", cfg.Reservation.RateLimit, cfg.Reservation.RateWindow)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.Reservation.IdemTTL)

	// Gateways
	payments := processor.New(processor.Config{
		BaseURL:     cfg.Processor.BaseURL,
		AccessToken: cfg.Processor.AccessToken,
		Timeout:     cfg.Processor.Timeout,
		MaxAttempts: 2,
	})
	transfers := processor.New(processor.Config{
		BaseURL:     cfg.Transfer.BaseURL,
		AccessToken: cfg.Transfer.AccessToken,
		Timeout:     cfg.Transfer.Timeout,
		MaxAttempts: cfg.Transfer.MaxAttempts,
	})

	// Services
	services := service.NewServices(store, cache, pubsub, limiter, payments, notify.NewPublisher(rdb, clk), clk, logger, service.Config{
		Reservation: reservation.Config{
			MinHold:     cfg.Reservation.MinHold,
			MaxHold:     cfg.Reservation.MaxHold,
			DefaultHold: cfg.Reservation.DefaultHold,
			Payout: domain.PayoutPolicy{
				FeePercent: cfg.Payout.FeePercent,
				HoldBack:   cfg.Payout.HoldBack,
				Currency:   cfg.Payout.Currency,
			},
		},
		Checkout: checkout.Config{
			Currency:  cfg.Payout.Currency,
			NotifyURL: cfg.Processor.NotifyURL,
		},
	})

	// Periodic jobs
	sched, err := scheduler.New(logger, scheduler.Config{
		Timezone: cfg.Jobs.Timezone,
		Timeout:  cfg.Jobs.Timeout,
	})
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	if cfg.Jobs.Enabled {
		locker := lock.New(store.Locks(), clk, logger)

		sweeper := expiry.New(locker, store.Tickets(), services.Reservation, clk, logger, expiry.Config{
			Staleness: cfg.Jobs.LockStaleness,
			BatchSize: cfg.Jobs.ExpiryBatchSize,
		})
		settler := payout.New(locker, store.Payouts(), store.Admin(), transfers, clk, logger, payout.Config{
			Staleness:   cfg.Jobs.LockStaleness,
			Description: cfg.Payout.Description,
		})

		if err := sched.Register(expiry.JobName, cfg.Jobs.ExpirySchedule, sweeper.Tick); err != nil {
			pool.Close()
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to register %s: %w", expiry.JobName, err)
		}

		if err := sched.Register(payout.JobName, cfg.Jobs.PayoutSchedule, settler.Tick); err != nil {
			pool.Close()
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to register %s: %w", payout.JobName, err)
		}
	}

	router := httpgin.NewRouter(services, idempotencyStore, logger, httpgin.RouterConfig{
		WebhookSecret: cfg.Processor.WebhookSecret,
	})

	return &App{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		rdb:       rdb,
		cache:     cache,
		pubsub:    pubsub,
		services:  services,
		scheduler: sched,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Periodic jobs
	g.Go(func() error {
		return a.scheduler.Run(gCtx)
	})

	// Counter changes made by other instances
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, eventID int64) {
			if err := a.cache.InvalidateEvent(ctx, eventID); err != nil {
				a.logger.Warn("cache invalidation failed", "event_id", eventID, "error", err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("inventory subscription: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) close() {
	a.services.Webhook.Wait()

	if err := a.rdb.Close(); err != nil {
		a.logger.Warn("redis close failed", "error", err)
	}

	a.pool.Close()
}
