package checkout

import (
	"errors"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidItem        = errors.New("invalid cart item")
	ErrTooManyItems       = errors.New("too many cart items")
	ErrPaymentUnavailable = errors.New("payment processor unavailable")
)
