package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zapkart/zapkart-backend/api/controllers"
	"github.com/zapkart/zapkart-backend/api/middleware"
	cartsvc "github.com/zapkart/zapkart-backend/internal/cart"
	checkoutsvc "github.com/zapkart/zapkart-backend/internal/checkout"
	ordersvc "github.com/zapkart/zapkart-backend/internal/orders"
	paymentsvc "github.com/zapkart/zapkart-backend/internal/payments"
	walletsvc "github.com/zapkart/zapkart-backend/internal/wallet"
	"github.com/zapkart/zapkart-backend/pkg/config"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	"github.com/zapkart/zapkart-backend/pkg/gateway"
	"github.com/zapkart/zapkart-backend/pkg/logger"
	"github.com/zapkart/zapkart-backend/pkg/metrics"
	"github.com/zapkart/zapkart-backend/pkg/redis"
)

// Gateways retry aggressively on 5xx; the window is sized for bursty
// redelivery, not steady-state traffic.
var webhookRateLimitPolicy = middleware.NewRateLimitPolicy("webhook", time.Minute, 120)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	httpMetrics *metrics.HTTPMetrics,
	gatewayClient *gateway.Client,
	cartService cartsvc.Service,
	checkoutService checkoutsvc.Service,
	paymentService paymentsvc.Service,
	orderService ordersvc.Service,
	walletService walletsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, redisClient, logg))
	})

	if httpMetrics != nil {
		r.Method(http.MethodGet, "/metrics", httpMetrics.Handler())
	}

	// Webhooks authenticate by signature, not bearer token.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(webhookRateLimitPolicy, redisClient, logg))
		r.Post("/payment", controllers.PaymentWebhook(paymentService, gatewayClient, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartService, logg))
			r.Put("/", controllers.CartUpsert(cartService, logg))
		})

		r.Route("/v1/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutBuild(checkoutService, logg))
			r.Get("/{draftID}", controllers.CheckoutGetDraft(checkoutService, logg))
			r.Post("/{draftID}/pay", controllers.CheckoutPay(paymentService, logg))
		})

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(orderService, logg))
			r.Get("/{orderID}", controllers.OrderGet(orderService, logg))
			r.Post("/{orderID}/items/{itemID}/cancel", controllers.OrderItemCancel(orderService, logg))
			r.Post("/{orderID}/items/{itemID}/return", controllers.OrderItemReturn(orderService, logg))
		})

		r.Get("/v1/wallet", controllers.WalletGet(walletService, logg))

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleAdmin.String(), logg))
			r.Post("/orders/{orderID}/items/{itemID}/return-decision", controllers.AdminReturnDecision(orderService, logg))
		})
	})

	return r
}
