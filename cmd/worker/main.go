package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/harmonia-digital/storefront-backend/internal/catalog"
	"github.com/harmonia-digital/storefront-backend/internal/customers"
	"github.com/harmonia-digital/storefront-backend/internal/entitlements"
	"github.com/harmonia-digital/storefront-backend/internal/notifications"
	"github.com/harmonia-digital/storefront-backend/internal/orders"
	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/db"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
	"github.com/harmonia-digital/storefront-backend/pkg/mailer"
	"github.com/harmonia-digital/storefront-backend/pkg/outbox"
	"github.com/harmonia-digital/storefront-backend/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "notification-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "notification-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, true, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	sender, err := mailer.New(cfg.Sendgrid, logg)
	requireResource(ctx, logg, "mailer", err)

	gormDB := dbClient.DB()
	entitlementsRepo := entitlements.NewRepository(gormDB)

	entitlementService, err := entitlements.NewService(entitlementsRepo, dbClient, cfg.Downloads)
	requireResource(ctx, logg, "entitlements service", err)

	orderService, err := orders.NewService(
		orders.NewRepository(gormDB),
		catalog.NewRepository(gormDB),
		dbClient,
		entitlementService,
		customers.NewRepository(gormDB),
		outbox.NewService(outbox.NewRepository(gormDB), logg),
		cfg.Storefront,
		nil,
	)
	requireResource(ctx, logg, "order service", err)

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Subscription: pubsubClient.NotificationSubscription(),
		Registry:     notifications.NewDecoderRegistry(),
		Sender:       sender,
		Orders:       orderService,
		Tokens:       entitlementsRepo,
		ClientURL:    cfg.Storefront.ClientURL,
		StoreName:    cfg.Sendgrid.FromName,
		Logger:       logg,
	})
	requireResource(ctx, logg, "notification consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": "notification-worker",
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "notification worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "notification worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
