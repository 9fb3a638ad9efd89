package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jemi-ng/pickup-backend/api/controllers"
	ordercontrollers "github.com/jemi-ng/pickup-backend/api/controllers/orders"
	paymentcontrollers "github.com/jemi-ng/pickup-backend/api/controllers/payments"
	webhookcontrollers "github.com/jemi-ng/pickup-backend/api/controllers/webhooks"
	"github.com/jemi-ng/pickup-backend/api/middleware"
	"github.com/jemi-ng/pickup-backend/internal/orders"
	"github.com/jemi-ng/pickup-backend/pkg/config"
	"github.com/jemi-ng/pickup-backend/pkg/logger"
	"github.com/jemi-ng/pickup-backend/pkg/redis"
)

// Deps carries everything the HTTP surface calls into.
type Deps struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               controllers.Pinger
	Redis            controllers.Pinger
	IdempotencyStore redis.IdempotencyStore
	Orders           orders.Service
	Payments         paymentcontrollers.Service
	PaystackWebhooks webhookcontrollers.PaystackWebhookService
	Metrics          http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.FrontendURL),
	)
	if cfg.App.IsDev() {
		r.Use(middleware.ExposeInternalErrors)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Paystack calls this without a bearer token; the signature authenticates it.
	r.Post("/api/v1/payment/webhook", webhookcontrollers.PaystackWebhook(deps.PaystackWebhooks, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.IdempotencyStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Get("/{orderId}/track", ordercontrollers.Track(deps.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
		})
		r.Route("/payment", func(r chi.Router) {
			r.Post("/initialize", paymentcontrollers.Initialize(deps.Payments, logg))
			r.Post("/verify", paymentcontrollers.Verify(deps.Payments, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireOrderManager(logg))
		r.Use(middleware.Idempotency(deps.IdempotencyStore, logg))
		r.Patch("/orders/{orderId}/status", ordercontrollers.AdminAdvanceStatus(deps.Orders, logg))
	})

	return r
}
