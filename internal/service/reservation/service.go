package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/tixpay/internal/clock"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/repository"
	postgresrepo "github.com/kirinyoku/tixpay/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tixpay/internal/repository/redis"
	"github.com/kirinyoku/tixpay/internal/uow"
)

type Config struct {
	MinHold     time.Duration
	MaxHold     time.Duration
	DefaultHold time.Duration
	Payout      domain.PayoutPolicy
}

// Service owns every mutation of inventory counters and ticket states. Each
// public operation is one serializable transaction.
type Service struct {
	store   *postgresrepo.Store
	cache   *redisrepo.Cache
	pubsub  *redisrepo.InventoryPubSub
	limiter *redisrepo.SlidingWindowLimiter
	uow     *uow.UoW
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.InventoryPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.MinHold <= 0 {
		cfg.MinHold = time.Minute
	}

	if cfg.MaxHold <= 0 || cfg.MaxHold < cfg.MinHold {
		cfg.MaxHold = 30 * time.Minute
	}

	if cfg.DefaultHold <= 0 {
		cfg.DefaultHold = 15 * time.Minute
	}

	if clk == nil {
		clk = clock.NewReal()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		uow:     uow.NewUoW(store),
		clock:   clk,
		logger:  logger,
		cfg:     cfg,
	}
}

func (s *Service) clampHold(hold time.Duration) time.Duration {
	if hold <= 0 {
		hold = s.cfg.DefaultHold
	}

	if hold < s.cfg.MinHold {
		return s.cfg.MinHold
	}

	if hold > s.cfg.MaxHold {
		return s.cfg.MaxHold
	}

	return hold
}

// inventoryChanged registers the cache invalidation and change announcement
// for the touched events. Both are best effort: the cache entries also expire
// on their own.
func (s *Service) inventoryChanged(after func(uow.AfterCommit), eventIDs ...int64) {
	if len(eventIDs) == 0 {
		return
	}

	after(func(ctx context.Context) {
		seen := make(map[int64]struct{}, len(eventIDs))
		for _, id := range eventIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			if s.cache != nil {
				_ = s.cache.InvalidateEvent(ctx, id)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishInventoryChanged(ctx, id)
			}
		}
	})
}

// mapRepoErr turns repository and domain errors into this package's errors.
func mapRepoErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientStock):
		return fmt.Errorf("%s:%w", op, ErrInsufficientStock)
	case errors.Is(err, repository.ErrUnknownFare):
		return fmt.Errorf("%s:%w", op, ErrInvalidFare)
	case errors.Is(err, repository.ErrStaleState):
		return fmt.Errorf("%s:%w", op, ErrConcurrentUpdate)
	case errors.Is(err, domain.ErrNotExpirable):
		return fmt.Errorf("%s:%w", op, ErrNotExpirable)
	case errors.Is(err, domain.ErrPaymentMismatch):
		return fmt.Errorf("%s:%w", op, ErrPaymentMismatch)
	case errors.Is(err, domain.ErrInvalidTransition):
		return fmt.Errorf("%s:%w: %v", op, ErrInvalidTransition, err)
	}

	return fmt.Errorf("%s:%w", op, err)
}
