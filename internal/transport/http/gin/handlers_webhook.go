package httpgin

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tixpay/internal/service"
)

// @Summary  Payment notification from the processor
// @Param    X-Signature  header  string  false  "sha256=<hex hmac of body>"
// @Success  200 {object} WebhookResponse
// @Failure  401 {object} ErrorResponse "invalid signature"
// @Failure  503 {object} ErrorResponse "retry later"
// @Router   /webhooks/payments [post]
//
// Every handled or rejected notification is acknowledged with 200; 503 only
// when ingestion could not reach its dependencies and redelivery is wanted.
func handlePaymentWebhook(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if v, ok := c.Get(ctxWebhookBody); ok {
			body, _ = v.([]byte)
		} else {
			b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
			if err != nil {
				badRequest(c, "unreadable body")
				return
			}
			body = b
		}

		outcome, err := svcs.Webhook.HandlePaymentNotification(c.Request.Context(), body)
		if err != nil {
			c.Header("Retry-After", "30")
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "temporarily unavailable"})
			return
		}

		c.JSON(http.StatusOK, WebhookResponse{Outcome: string(outcome)})
	}
}
