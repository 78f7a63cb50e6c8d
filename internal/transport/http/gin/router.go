package httpgin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redisrepo "github.com/kirinyoku/tixpay/internal/repository/redis"
	"github.com/kirinyoku/tixpay/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterConfig struct {
	// WebhookSecret enables the X-Signature check on payment notifications.
	WebhookSecret string
}

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	cfg RouterConfig,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger, "/healthz", "/metrics"), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/events", handleListEvents(svcs))
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/events/:id/availability", handleGetAvailability(svcs))
	r.POST("/events/:id/reservations", handleCreateReservation(svcs, idem))

	r.PUT("/carts/:user_id", handlePutCart(svcs))
	r.GET("/carts/:user_id", handleGetCart(svcs))
	r.POST("/checkout", handleCheckout(svcs))

	r.GET("/orders/:id", handleGetOrder(svcs))
	r.POST("/tickets/:id/cancel", handleCancelTicket(svcs))
	r.POST("/tickets/:id/refund", handleRefundTicket(svcs))

	r.POST("/webhooks/payments", WebhookSignature(cfg.WebhookSecret), handlePaymentWebhook(svcs))

	// Admin API
	// TODO: add admin middleware
	admin := r.Group("/admin")
	{
		admin.POST("/producers", handleCreateProducer(svcs))
		admin.PUT("/producers/:id/payout-account", handleSetPayoutAccount(svcs))
		admin.POST("/events", handleCreateEvent(svcs))
		admin.GET("/events/:id/inventory", handleInventoryReport(svcs))
	}

	return r
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
