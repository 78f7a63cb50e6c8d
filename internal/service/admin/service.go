package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/repository"
	postgresrepo "github.com/kirinyoku/tixpay/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tixpay/internal/repository/redis"
	"github.com/kirinyoku/tixpay/internal/uow"
)

type Service struct {
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	pubsub *redisrepo.InventoryPubSub
	uow    *uow.UoW
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, pubsub *redisrepo.InventoryPubSub) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		uow:    uow.NewUoW(store),
	}
}

// CreateProducer registers an event producer.
//
// Parameters:
//   - ctx: request-scoped context.
//   - name: producer name.
//   - payoutAccountID: transfer receiver; nil when not known yet.
//
// Returns:
//   - int64: the created producer ID on success.
//   - error: admin.ErrProducerConflict if the name is already taken.
func (s *Service) CreateProducer(ctx context.Context, name string, payoutAccountID *string) (int64, error) {
	const op = "service.admin.CreateProducer"

	if payoutAccountID != nil && strings.TrimSpace(*payoutAccountID) == "" {
		payoutAccountID = nil
	}

	id, err := s.store.Admin().CreateProducer(ctx, strings.TrimSpace(name), payoutAccountID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%s:%w", op, ErrProducerConflict)
		}
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

// SetPayoutAccount attaches the transfer receiver of a producer. Payouts
// already marked error are not retried.
//
// Returns:
//   - error: admin.ErrProducerNotFound if the producer does not exist.
func (s *Service) SetPayoutAccount(ctx context.Context, producerID int64, accountID string) error {
	const op = "service.admin.SetPayoutAccount"

	if err := s.store.Admin().SetPayoutAccount(ctx, producerID, strings.TrimSpace(accountID)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrProducerNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// CreateEvent creates an event whose counters start at its capacities.
//
// Returns:
//   - int64: the created event ID.
//   - error: admin.ErrInvalidEvent if times, prices or capacities are inconsistent.
//   - error: admin.ErrProducerNotFound if the producer does not exist.
//   - error: admin.ErrEventConflict if the event violates a uniqueness constraint.
func (s *Service) CreateEvent(ctx context.Context, e domain.Event) (int64, error) {
	const op = "service.admin.CreateEvent"

	if err := validateEvent(e); err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	var eventID int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		var err error
		eventID, err = s.store.Admin().With(tx).CreateEvent(ctx, e)
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return fmt.Errorf("%s:%w", op, ErrProducerNotFound)
			case errors.Is(err, repository.ErrConflict):
				return fmt.Errorf("%s:%w", op, ErrEventConflict)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		id := eventID
		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateEvent(ctx, id)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishInventoryChanged(ctx, id)
			}
		})

		return nil
	})

	return eventID, err
}

func validateEvent(e domain.Event) error {
	switch {
	case e.ProducerID <= 0:
		return fmt.Errorf("%w: producer id is required", ErrInvalidEvent)
	case strings.TrimSpace(e.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	case !e.Ends.After(e.Starts):
		return fmt.Errorf("%w: ends before it starts", ErrInvalidEvent)
	case e.FullPrice.IsNegative() || e.HalfPrice.IsNegative():
		return fmt.Errorf("%w: negative price", ErrInvalidEvent)
	case e.FullCapacity < 0 || e.HalfCapacity < 0:
		return fmt.Errorf("%w: negative capacity", ErrInvalidEvent)
	case e.FullCapacity+e.HalfCapacity == 0:
		return fmt.Errorf("%w: no capacity", ErrInvalidEvent)
	}

	return nil
}
