package httpgin

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tixpay/internal/service/admin"
	"github.com/kirinyoku/tixpay/internal/service/checkout"
	"github.com/kirinyoku/tixpay/internal/service/orders"
	"github.com/kirinyoku/tixpay/internal/service/query"
	"github.com/kirinyoku/tixpay/internal/service/reservation"
)

type errMapping struct {
	target error
	status int
	msg    string
}

var errMappings = []errMapping{
	// validation
	{reservation.ErrInvalidQuantity, http.StatusBadRequest, "quantity must be positive"},
	{reservation.ErrInvalidFare, http.StatusBadRequest, "unknown fare class"},
	{reservation.ErrEmptyCart, http.StatusBadRequest, "nothing to reserve"},
	{checkout.ErrInvalidItem, http.StatusBadRequest, "invalid cart item"},
	{checkout.ErrTooManyItems, http.StatusBadRequest, "too many cart items"},
	{checkout.ErrEmptyCart, http.StatusBadRequest, "cart is empty"},
	{admin.ErrInvalidEvent, http.StatusBadRequest, "invalid event"},

	// not found
	{query.ErrEventNotFound, http.StatusNotFound, "event not found"},
	{reservation.ErrEventNotFound, http.StatusNotFound, "event not found"},
	{reservation.ErrTicketNotFound, http.StatusNotFound, "ticket not found"},
	{orders.ErrOrderNotFound, http.StatusNotFound, "order not found"},
	{admin.ErrProducerNotFound, http.StatusNotFound, "producer not found"},

	// exhaustion and state conflicts
	{reservation.ErrInsufficientStock, http.StatusConflict, "insufficient stock"},
	{reservation.ErrInvalidTransition, http.StatusConflict, "invalid ticket transition"},
	{reservation.ErrPaymentMismatch, http.StatusConflict, "ticket paid by another payment"},
	{reservation.ErrConcurrentUpdate, http.StatusConflict, "ticket changed concurrently, retry"},
	{admin.ErrProducerConflict, http.StatusConflict, "producer already exists"},
	{admin.ErrEventConflict, http.StatusConflict, "event already exists"},

	// external
	{checkout.ErrPaymentUnavailable, http.StatusServiceUnavailable, "payment processor unavailable"},
}

// respondErr maps service errors to HTTP answers. Unknown errors are 500 and
// recorded on the context for the access log.
func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var rl reservation.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", retryAfterSeconds(rl.RetryAfter))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
		return
	}

	for _, m := range errMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, ErrorResponse{Error: m.msg})
			return
		}
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func retryAfterSeconds(d string) string {
	parsed, err := time.ParseDuration(d)
	if err != nil || parsed <= 0 {
		return "1"
	}

	return strconv.Itoa(int(math.Ceil(parsed.Seconds())))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
