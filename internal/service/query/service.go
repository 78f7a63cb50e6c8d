package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/repository"
	postgresrepo "github.com/kirinyoku/tixpay/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tixpay/internal/repository/redis"
)

type Config struct {
	EventSummaryTTL   time.Duration
	AvailabilityTTL   time.Duration
	DefaultEventsPage int
	MaxEventsPage     int
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.EventSummaryTTL <= 0 {
		cfg.EventSummaryTTL = 60 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	if cfg.DefaultEventsPage <= 0 {
		cfg.DefaultEventsPage = 50
	}

	if cfg.MaxEventsPage <= 0 {
		cfg.MaxEventsPage = 200
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// GetEvent retrieves an event by its ID through the summary cache.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: ID of the event to retrieve.
//
// Returns:
//   - *domain.Event: the retrieved event, or nil if not found.
//   - error: query.ErrEventNotFound if the event is not found.
func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "service.query.GetEvent"

	event, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEventSummary(id),
		s.cfg.EventSummaryTTL,
		func(ctx context.Context) (domain.Event, error) {
			e, err := s.store.Query().GetEvent(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Event{}, ErrEventNotFound
				}

				return domain.Event{}, err
			}

			return *e, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &event, nil
}

// ListEvents lists events by start time. limit is clamped to the configured
// page bounds.
func (s *Service) ListEvents(ctx context.Context, limit, offset int) ([]domain.Event, error) {
	const op = "service.query.ListEvents"

	if limit <= 0 {
		limit = s.cfg.DefaultEventsPage
	}

	if limit > s.cfg.MaxEventsPage {
		limit = s.cfg.MaxEventsPage
	}

	if offset < 0 {
		offset = 0
	}

	events, err := s.store.Query().ListEvents(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return events, nil
}

// Availability returns the remaining units of an event per fare class. The
// cached value is dropped whenever a transaction changes the counters.
//
// Returns:
//   - *domain.EventCounts: the counters.
//   - error: query.ErrEventNotFound if the event is not found.
func (s *Service) Availability(ctx context.Context, eventID int64) (*domain.EventCounts, error) {
	const op = "service.query.Availability"

	counts, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEventAvailability(eventID),
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.EventCounts, error) {
			ec, err := s.store.Inventory().Counts(ctx, eventID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.EventCounts{}, ErrEventNotFound
				}

				return domain.EventCounts{}, err
			}

			return *ec, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &counts, nil
}

// InventoryReport compares the counters of an event with its tickets. It
// always reads the database.
//
// Returns:
//   - error: query.ErrEventNotFound if the event is not found.
func (s *Service) InventoryReport(ctx context.Context, eventID int64) (*domain.InventoryReport, error) {
	const op = "service.query.InventoryReport"

	r, err := s.store.Query().InventoryReport(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return r, nil
}
