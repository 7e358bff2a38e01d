package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harmonia-digital/storefront-backend/api/controllers"
	webhookcontrollers "github.com/harmonia-digital/storefront-backend/api/controllers/webhooks"
	"github.com/harmonia-digital/storefront-backend/api/middleware"
	adminsvc "github.com/harmonia-digital/storefront-backend/internal/admins"
	catalogsvc "github.com/harmonia-digital/storefront-backend/internal/catalog"
	"github.com/harmonia-digital/storefront-backend/internal/customers"
	downloadsvc "github.com/harmonia-digital/storefront-backend/internal/downloads"
	entitlementsvc "github.com/harmonia-digital/storefront-backend/internal/entitlements"
	ordersvc "github.com/harmonia-digital/storefront-backend/internal/orders"
	pagesvc "github.com/harmonia-digital/storefront-backend/internal/pages"
	paymentsvc "github.com/harmonia-digital/storefront-backend/internal/payments"
	"github.com/harmonia-digital/storefront-backend/internal/webhooks"
	paypalwebhook "github.com/harmonia-digital/storefront-backend/internal/webhooks/paypal"
	stripewebhook "github.com/harmonia-digital/storefront-backend/internal/webhooks/stripe"
	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
	"github.com/harmonia-digital/storefront-backend/pkg/metrics"
	"github.com/harmonia-digital/storefront-backend/pkg/paypal"
	"github.com/harmonia-digital/storefront-backend/pkg/redis"
	"github.com/harmonia-digital/storefront-backend/pkg/storage/gcs"
	"github.com/harmonia-digital/storefront-backend/pkg/stripe"
)

// RouterParams carries every dependency the HTTP surface needs. Optional
// integrations (Stripe, PayPal, Pub/Sub) may be nil; the routes stay mounted
// and report a configuration error when hit.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	// Readiness probes, keyed by dependency name. Nil entries are skipped.
	ReadinessDeps map[string]controllers.Pinger

	Redis        *redis.Client
	UploadBucket *gcs.Bucket

	Catalog      catalogsvc.Service
	Orders       ordersvc.Service
	Payments     paymentsvc.Service
	Downloads    downloadsvc.Service
	Pages        pagesvc.Service
	Admins       adminsvc.Service
	Entitlements entitlementsvc.Service
	Customers    customers.Repository

	StripeClient  *stripe.Client
	PayPalClient  *paypal.Client
	StripeWebhook *stripewebhook.Service
	PayPalWebhook *paypalwebhook.Service
	WebhookGuard  *webhooks.IdempotencyGuard

	HTTPMetrics  *metrics.HTTPMetrics
	StoreMetrics *metrics.StoreMetrics
	PromRegistry *prometheus.Registry
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Storefront.ClientURL),
	)
	if p.HTTPMetrics != nil {
		r.Use(middleware.Metrics(p.HTTPMetrics))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.ReadinessDeps))
	})

	if p.PromRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.PromRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, p.StripeClient, p.WebhookGuard, p.StoreMetrics, logg))
		r.Post("/paypal", webhookcontrollers.PayPalWebhook(p.PayPalWebhook, p.PayPalClient, p.WebhookGuard, p.StoreMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(p.Catalog, logg))
			r.Get("/{productId}", controllers.ProductDetail(p.Catalog, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(p.Orders, logg))
			r.Post("/lookup", controllers.OrderLookup(p.Orders, logg))
			r.Post("/{orderId}/checkout", controllers.CheckoutStart(p.Payments, logg))
		})

		r.Post("/payments/paypal/capture", controllers.PayPalCapture(p.Payments, logg))

		r.Route("/downloads", func(r chi.Router) {
			r.Get("/{token}", controllers.DownloadResolve(p.Downloads, logg))
			r.Post("/{token}/files/{fileIndex}", controllers.DownloadFile(p.Downloads, logg))
		})

		r.Get("/pages/{slug}", controllers.PageGet(p.Pages, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).
			Post("/auth/login", controllers.AdminLogin(p.Admins, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.JWT, logg))

			r.Post("/auth/change-password", controllers.AdminChangePassword(p.Admins, logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.AdminProductList(p.Catalog, logg))
				r.Post("/", controllers.AdminProductCreate(p.Catalog, logg))
				r.Get("/{productId}", controllers.AdminProductGet(p.Catalog, logg))
				r.Patch("/{productId}", controllers.AdminProductUpdate(p.Catalog, logg))
				r.Delete("/{productId}", controllers.AdminProductDelete(p.Catalog, logg))
				r.Post("/{productId}/files", controllers.AdminProductFileUpload(p.Catalog, p.UploadBucket, logg))
				r.Delete("/{productId}/files/{fileId}", controllers.AdminProductFileDelete(p.Catalog, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrderList(p.Orders, logg))
				r.Get("/{orderId}", controllers.AdminOrderDetail(p.Orders, logg))
				r.Post("/{orderId}/mark-paid", controllers.AdminOrderMarkPaid(p.Orders, logg))
				r.Post("/{orderId}/entitlements", controllers.AdminEntitlementsReissue(p.Entitlements, logg))
			})

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", controllers.AdminCustomerList(p.Customers, logg))
				r.Get("/lookup", controllers.AdminCustomerGet(p.Customers, logg))
			})

			r.Route("/pages", func(r chi.Router) {
				r.Get("/", controllers.AdminPageList(p.Pages, logg))
				r.Get("/{slug}", controllers.AdminPageGet(p.Pages, logg))
				r.Put("/{slug}", controllers.AdminPageUpsert(p.Pages, logg))
				r.Delete("/{slug}", controllers.AdminPageDelete(p.Pages, logg))
			})
		})
	})

	return r
}
