package httpgin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tixpay/internal/domain"
	"github.com/kirinyoku/tixpay/internal/service"
)

// @Summary  Replace a user's cart
// @Param    user_id  path  int  true  "User ID"
// @Param    req body  PutCartRequest true "payload"
// @Success  200 {object} CartResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "event not found"
// @Router   /carts/{user_id} [put]
func handlePutCart(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "user_id")
		if !ok {
			return
		}
		var req PutCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		items := make([]domain.CartItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, domain.CartItem{
				EventID:   it.EventID,
				FareClass: domain.FareClass(it.FareClass),
				Quantity:  it.Quantity,
			})
		}

		cart, err := svcs.Checkout.PutCart(c.Request.Context(), userID, items)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(*cart))
	}
}

// @Summary  Get a user's cart
// @Param    user_id  path  int  true  "User ID"
// @Success  200 {object} CartResponse
// @Router   /carts/{user_id} [get]
func handleGetCart(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "user_id")
		if !ok {
			return
		}
		cart, err := svcs.Checkout.GetCart(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(*cart))
	}
}

// @Summary  Reserve the cart and open a payment
// @Param    req body  CheckoutRequest true "payload"
// @Success  201 {object} CheckoutResponse
// @Failure  400 {object} ErrorResponse "cart is empty"
// @Failure  409 {object} ErrorResponse "insufficient stock"
// @Failure  503 {object} ErrorResponse "payment processor unavailable"
// @Router   /checkout [post]
func handleCheckout(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svcs.Checkout.Checkout(
			c.Request.Context(),
			req.UserID,
			time.Duration(req.HoldSec)*time.Second,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, toCheckoutResponse(*res))
	}
}

// @Summary  Get order with tickets
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} OrderResponse
// @Failure  404 {object} ErrorResponse
// @Router   /orders/{id} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Orders.Get(c.Request.Context(), orderID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(*o))
	}
}

// @Summary  Cancel a ticket
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  200 {object} CancelTicketResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /tickets/{id}/cancel [post]
func handleCancelTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		restored, err := svcs.Reservation.Cancel(c.Request.Context(), ticketID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CancelTicketResponse{TicketID: ticketID.String(), Restored: restored})
	}
}

// @Summary  Refund a paid ticket
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /tickets/{id}/refund [post]
func handleRefundTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		respondErr(c, svcs.Reservation.Refund(c.Request.Context(), ticketID))
	}
}
