package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skyfare-io/skyfare-backend/api/routes"
	"github.com/skyfare-io/skyfare-backend/internal/bookings"
	"github.com/skyfare-io/skyfare-backend/internal/checkout"
	"github.com/skyfare-io/skyfare-backend/internal/inventory"
	"github.com/skyfare-io/skyfare-backend/internal/ledger"
	"github.com/skyfare-io/skyfare-backend/internal/payments"
	"github.com/skyfare-io/skyfare-backend/internal/seatlocks"
	"github.com/skyfare-io/skyfare-backend/internal/users"
	stripewebhook "github.com/skyfare-io/skyfare-backend/internal/webhooks/stripe"
	"github.com/skyfare-io/skyfare-backend/pkg/config"
	"github.com/skyfare-io/skyfare-backend/pkg/db"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
	"github.com/skyfare-io/skyfare-backend/pkg/metrics"
	"github.com/skyfare-io/skyfare-backend/pkg/migrate"
	"github.com/skyfare-io/skyfare-backend/pkg/outbox"
	"github.com/skyfare-io/skyfare-backend/pkg/redis"
	"github.com/skyfare-io/skyfare-backend/pkg/stripe"
)

const webhookGuardTTL = 24 * time.Hour

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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize stripe client", err)
		os.Exit(1)
	}

	bookingRepo := bookings.NewRepository(dbClient.DB())
	bookingService, err := bookings.NewService(bookingRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create bookings service", err)
		os.Exit(1)
	}

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	inventoryService, err := inventory.NewService(inventoryRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	seatLockService, err := seatlocks.NewService(seatlocks.ServiceParams{
		Repo:          seatlocks.NewRepository(dbClient.DB()),
		InventoryRepo: inventoryRepo,
		DefaultTTL:    cfg.SeatLocks.TTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create seat lock service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	gateway, err := payments.NewGateway(payments.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookGuardTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		BookingRepo:       bookingRepo,
		Bookings:          bookingService,
		Inventory:         inventoryService,
		SeatLocks:         seatLockService,
		Ledger:            ledgerService,
		Gateway:           gateway,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Guard:             guard,
		Metrics:           metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(users.ServiceParams{
		Repo:     users.NewRepository(dbClient.DB()),
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Auth:     cfg.Auth,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		TransactionRunner: dbClient,
		Bookings:          bookingService,
		BookingRepo:       bookingRepo,
		SeatLocks:         seatLockService,
		Outbox:            outboxService,
		Intents:           stripeClient.Intents(),
		Idempotency:       redisClient,
		Config:            cfg.Checkout,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, dbClient, bookingRepo, checkoutService, bookingService, usersService, webhookService, stripeClient),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
