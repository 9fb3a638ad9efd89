package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/jemi-ng/pickup-backend/api/routes"
	"github.com/jemi-ng/pickup-backend/internal/cart"
	"github.com/jemi-ng/pickup-backend/internal/checkout"
	"github.com/jemi-ng/pickup-backend/internal/orders"
	"github.com/jemi-ng/pickup-backend/internal/payments"
	"github.com/jemi-ng/pickup-backend/internal/products"
	"github.com/jemi-ng/pickup-backend/internal/users"
	paystackwebhook "github.com/jemi-ng/pickup-backend/internal/webhooks/paystack"
	"github.com/jemi-ng/pickup-backend/pkg/config"
	"github.com/jemi-ng/pickup-backend/pkg/db"
	"github.com/jemi-ng/pickup-backend/pkg/instance"
	"github.com/jemi-ng/pickup-backend/pkg/logger"
	"github.com/jemi-ng/pickup-backend/pkg/metrics"
	"github.com/jemi-ng/pickup-backend/pkg/migrate"
	"github.com/jemi-ng/pickup-backend/pkg/outbox"
	"github.com/jemi-ng/pickup-backend/pkg/paystack"
	"github.com/jemi-ng/pickup-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	if cfg.App.IsProd() && strings.HasPrefix(cfg.Paystack.SecretKey, "sk_test_") {
		logg.Warn(ctx, "production is configured with a Paystack test key")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(reg)

	gateway, err := paystack.NewClient(cfg.Paystack.SecretKey,
		paystack.WithBaseURL(cfg.Paystack.BaseURL),
		paystack.WithTimeout(cfg.Paystack.Timeout),
		paystack.WithBreaker(paystack.BreakerSettings{
			MaxFailures: cfg.Paystack.BreakerMaxFailures,
			OpenTimeout: cfg.Paystack.BreakerOpenTimeout,
			OnChange:    paymentMetrics.BreakerChanged,
		}),
	)
	if err != nil {
		return err
	}

	handler, err := buildHandler(cfg, logg, dbClient, redisClient, gateway, paymentMetrics, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildHandler assembles the order, payment and webhook services over the
// shared stores.
func buildHandler(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	gateway payments.Gateway,
	paymentMetrics *metrics.PaymentMetrics,
	metricsHandler http.Handler,
) (http.Handler, error) {
	conn := dbClient.DB()

	catalog := products.NewRepository(conn)
	ledger, err := products.NewLedger(catalog)
	if err != nil {
		return nil, err
	}
	carts := cart.NewRepository(conn)
	snapshots, err := checkout.NewBuilder(carts, catalog)
	if err != nil {
		return nil, err
	}
	orderRepo := orders.NewRepository(conn)
	events := outbox.NewService(outbox.NewRepository(conn), logg)

	orderSettings, err := orders.SettingsFromConfig(cfg.Checkout)
	if err != nil {
		return nil, err
	}
	orderService, err := orders.NewService(orders.Deps{
		Tx:        dbClient,
		Orders:    orderRepo,
		Users:     users.NewRepository(conn),
		Carts:     carts,
		Snapshots: snapshots,
		Ledger:    ledger,
		Outbox:    events,
		Codes:     orders.NewCodeGenerator(cfg.Checkout.BrandCode),
		Logger:    logg,
		Settings:  orderSettings,
	})
	if err != nil {
		return nil, err
	}

	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Tx:      dbClient,
		Orders:  orderRepo,
		Ledger:  ledger,
		Carts:   carts,
		Outbox:  events,
		Metrics: paymentMetrics,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Orders:     orderService,
		Reconciler: reconciler,
		Gateway:    gateway,
		Settings:   payments.SettingsFromConfig(cfg.App, cfg.Paystack),
		Metrics:    paymentMetrics,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	guard, err := paystackwebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, paystackwebhook.GuardScope)
	if err != nil {
		return nil, err
	}
	webhookService, err := paystackwebhook.NewService(paystackwebhook.ServiceParams{
		Reconciler:      reconciler,
		Guard:           guard,
		SecretKey:       cfg.Paystack.SecretKey,
		ReferencePrefix: cfg.Paystack.ReferencePrefix,
		Metrics:         paymentMetrics,
		Logger:          logg,
	})
	if err != nil {
		return nil, err
	}

	return routes.NewRouter(routes.Deps{
		Config:           cfg,
		Logger:           logg,
		DB:               dbClient,
		Redis:            redisClient,
		IdempotencyStore: redisClient,
		Orders:           orderService,
		Payments:         paymentService,
		PaystackWebhooks: webhookService,
		Metrics:          metricsHandler,
	}), nil
}
