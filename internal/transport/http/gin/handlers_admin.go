package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tixpay/internal/service"
)

// @Summary  Create producer
// @Param    req body  CreateProducerRequest true "payload"
// @Success  201 {object} CreateProducerResponse
// @Failure  409 {object} ErrorResponse
// @Router   /admin/producers [post]
func handleCreateProducer(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateProducerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		id, err := svcs.Admin.CreateProducer(c.Request.Context(), req.Name, req.PayoutAccountID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateProducerResponse{ProducerID: id})
	}
}

// @Summary  Set producer payout account
// @Param    id  path  int  true  "Producer ID"
// @Param    req body  SetPayoutAccountRequest true "payload"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /admin/producers/{id}/payout-account [put]
func handleSetPayoutAccount(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		producerID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req SetPayoutAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		respondErr(c, svcs.Admin.SetPayoutAccount(c.Request.Context(), producerID, req.AccountID))
	}
}

// @Summary  Create event with fare capacities
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} CreateEventResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "producer not found"
// @Router   /admin/events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		e, msg := req.toDomain()
		if msg != "" {
			badRequest(c, msg)
			return
		}
		id, err := svcs.Admin.CreateEvent(c.Request.Context(), e)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateEventResponse{EventID: id})
	}
}

// @Summary  Inventory ledger check of an event
// @Param    id  path  int  true  "Event ID"
// @Success  200 {object} InventoryResponse
// @Failure  404 {object} ErrorResponse
// @Router   /admin/events/{id}/inventory [get]
func handleInventoryReport(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		r, err := svcs.Query.InventoryReport(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toInventoryResponse(*r))
	}
}
