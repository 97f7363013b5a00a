package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	cartsvc "github.com/zapkart/zapkart-backend/internal/cart"
	"github.com/zapkart/zapkart-backend/internal/catalog"
	checkoutsvc "github.com/zapkart/zapkart-backend/internal/checkout"
	couponsvc "github.com/zapkart/zapkart-backend/internal/coupons"
	"github.com/zapkart/zapkart-backend/internal/notifications"
	ordersvc "github.com/zapkart/zapkart-backend/internal/orders"
	paymentsvc "github.com/zapkart/zapkart-backend/internal/payments"
	referralsvc "github.com/zapkart/zapkart-backend/internal/referrals"
	walletsvc "github.com/zapkart/zapkart-backend/internal/wallet"
	"github.com/zapkart/zapkart-backend/pkg/config"
	"github.com/zapkart/zapkart-backend/pkg/db"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	"github.com/zapkart/zapkart-backend/pkg/gateway"
	"github.com/zapkart/zapkart-backend/pkg/logger"
	"github.com/zapkart/zapkart-backend/pkg/migrate"
	"github.com/zapkart/zapkart-backend/pkg/outbox"
	"github.com/zapkart/zapkart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "outbox-worker",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	// Refund handling needs the full confirmation graph: a redelivered capture
	// may still have to finish or fail an order before the refund is routed.
	catalogRepo := catalog.NewRepository(gormDB)
	cartRepo := cartsvc.NewRepository(gormDB)
	checkoutRepo := checkoutsvc.NewRepository(gormDB)

	couponService, err := couponsvc.NewService(couponsvc.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}
	walletService, err := walletsvc.NewService(walletsvc.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}
	referralService, err := referralsvc.NewService(walletService, outboxSvc, cfg.Referral)
	if err != nil {
		logg.Error(context.Background(), "failed to create referral service", err)
		os.Exit(1)
	}
	orderService, err := ordersvc.NewService(
		ordersvc.NewRepository(gormDB),
		checkoutRepo,
		cartRepo,
		catalogRepo,
		couponService,
		walletService,
		referralService,
		outboxSvc,
		dbClient,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}
	paymentService, err := paymentsvc.NewService(paymentsvc.NewRepository(gormDB), checkoutRepo, orderService, gatewayClient, outboxSvc, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}
	notificationService, err := notifications.NewService(notifications.NewLogSender(logg))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	poller, err := outbox.NewPoller(outboxRepo, redisClient, cfg.Outbox, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox poller", err)
		os.Exit(1)
	}
	poller.Register(enums.EventPaymentRefundPending, paymentService.HandleRefundPending)
	poller.Register(enums.EventOrderConfirmed, notificationService.HandleOrderConfirmed)
	poller.Register(enums.EventOrderPaymentFailed, notificationService.HandleOrderPaymentFailed)
	poller.Register(enums.EventOrderItemCancelled, notificationService.HandleItemCancelled)
	poller.Register(enums.EventOrderItemReturned, notificationService.HandleItemReturned)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
	})
	logg.Info(ctx, "starting outbox worker")

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox worker shutting down gracefully")
}
