package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/harmonia-digital/storefront-backend/api/controllers"
	"github.com/harmonia-digital/storefront-backend/api/routes"
	"github.com/harmonia-digital/storefront-backend/internal/admins"
	"github.com/harmonia-digital/storefront-backend/internal/catalog"
	"github.com/harmonia-digital/storefront-backend/internal/customers"
	"github.com/harmonia-digital/storefront-backend/internal/downloads"
	"github.com/harmonia-digital/storefront-backend/internal/entitlements"
	"github.com/harmonia-digital/storefront-backend/internal/orders"
	"github.com/harmonia-digital/storefront-backend/internal/pages"
	"github.com/harmonia-digital/storefront-backend/internal/payments"
	"github.com/harmonia-digital/storefront-backend/internal/webhooks"
	paypalwebhook "github.com/harmonia-digital/storefront-backend/internal/webhooks/paypal"
	stripewebhook "github.com/harmonia-digital/storefront-backend/internal/webhooks/stripe"
	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/db"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
	"github.com/harmonia-digital/storefront-backend/pkg/metrics"
	"github.com/harmonia-digital/storefront-backend/pkg/migrate"
	"github.com/harmonia-digital/storefront-backend/pkg/outbox"
	"github.com/harmonia-digital/storefront-backend/pkg/paypal"
	"github.com/harmonia-digital/storefront-backend/pkg/redis"
	"github.com/harmonia-digital/storefront-backend/pkg/storage/gcs"
	"github.com/harmonia-digital/storefront-backend/pkg/stripe"
)

const webhookIdempotencyTTL = 24 * time.Hour

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

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing gcs", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(promRegistry)
	storeMetrics := metrics.NewStoreMetrics(promRegistry)

	gormDB := dbClient.DB()
	catalogRepo := catalog.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	entitlementsRepo := entitlements.NewRepository(gormDB)
	customersRepo := customers.NewRepository(gormDB)
	pagesRepo := pages.NewRepository(gormDB)
	adminsRepo := admins.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	uploadBucket := gcsClient.BucketHandle(gcsClient.DefaultBucket())

	catalogService, err := catalog.NewService(catalogRepo, uploadBucket)
	requireService(logg, "catalog service", err)

	entitlementService, err := entitlements.NewService(entitlementsRepo, dbClient, cfg.Downloads)
	requireService(logg, "entitlements service", err)

	orderService, err := orders.NewService(
		ordersRepo,
		catalogRepo,
		dbClient,
		entitlementService,
		customersRepo,
		outboxSvc,
		cfg.Storefront,
		storeMetrics,
	)
	requireService(logg, "order service", err)

	downloadService, err := downloads.NewService(entitlementsRepo, gcsClient, cfg.Downloads, storeMetrics)
	requireService(logg, "download service", err)

	pageService, err := pages.NewService(pagesRepo)
	requireService(logg, "pages service", err)

	adminService, err := admins.NewService(adminsRepo, cfg.JWT, cfg.Password)
	requireService(logg, "admins service", err)

	var stripeClient *stripe.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = stripe.NewClient(context.Background(), cfg.Stripe, logg)
		requireService(logg, "stripe client", err)
	} else {
		logg.Warn(context.Background(), "stripe not configured, card checkout disabled")
	}

	var paypalClient *paypal.Client
	if cfg.PayPal.ClientID != "" {
		paypalClient, err = paypal.NewClient(context.Background(), cfg.PayPal, logg)
		requireService(logg, "paypal client", err)
	} else {
		logg.Warn(context.Background(), "paypal not configured, paypal checkout disabled")
	}

	paymentParams := payments.ServiceParams{
		Orders:     orderService,
		Storefront: cfg.Storefront,
		Logger:     logg,
	}
	if stripeClient != nil {
		paymentParams.Stripe = payments.NewStripeClient(stripeClient)
	}
	if paypalClient != nil {
		paymentParams.PayPal = paypalClient
	}
	paymentService, err := payments.NewService(paymentParams)
	requireService(logg, "payments service", err)

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders: orderService,
		Logger: logg,
	})
	requireService(logg, "stripe webhook service", err)

	paypalWebhookService, err := paypalwebhook.NewService(paypalwebhook.ServiceParams{
		Orders:   orderService,
		Payments: paymentService,
		Logger:   logg,
	})
	requireService(logg, "paypal webhook service", err)

	webhookGuard, err := webhooks.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "payment-webhooks")
	requireService(logg, "webhook idempotency guard", err)

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
		"gcs":      gcsClient,
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:        cfg,
		Logger:        logg,
		ReadinessDeps: readiness,
		Redis:         redisClient,
		UploadBucket:  uploadBucket,
		Catalog:       catalogService,
		Orders:        orderService,
		Payments:      paymentService,
		Downloads:     downloadService,
		Pages:         pageService,
		Admins:        adminService,
		Entitlements:  entitlementService,
		Customers:     customersRepo,
		StripeClient:  stripeClient,
		PayPalClient:  paypalClient,
		StripeWebhook: stripeWebhookService,
		PayPalWebhook: paypalWebhookService,
		WebhookGuard:  webhookGuard,
		HTTPMetrics:   httpMetrics,
		StoreMetrics:  storeMetrics,
		PromRegistry:  promRegistry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}

	logg.Info(ctx, "api server shut down gracefully")
}

func requireService(logg *logger.Logger, name string, err error) {
	if err != nil {
		logg.Error(context.Background(), "failed to create "+name, err)
		os.Exit(1)
	}
}
