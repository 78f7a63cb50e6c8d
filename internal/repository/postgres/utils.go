package postgresrepo

import (
	"fmt"

	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/repository"
)

// wrapDBErr maps common DB errors to repository-level errors and wraps them with
// the provided operation name.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s:%w", op, translateDBErr(err))
}

// fareColumn returns the events counter column for a fare class. Column names
// cannot be bound as parameters, so only these two literals ever reach SQL.
func fareColumn(fare domain.FareClass) (string, error) {
	switch fare {
	case domain.FareFull:
		return "full_count", nil
	case domain.FareHalf:
		return "half_count", nil
	default:
		return "", fmt.Errorf("%w: %q", repository.ErrUnknownFare, fare)
	}
}
