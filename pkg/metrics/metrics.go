package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request-level metrics for the API server.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the request metrics on the provided registerer.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests served, by route, method and status class.",
	}, []string{"route", "method", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
	reg.MustRegister(requests, duration)
	return &HTTPMetrics{requests: requests, duration: duration}
}

// Observe records one served request.
func (m *HTTPMetrics) Observe(route, method, status string, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(normalizeLabel(route), method, status).Inc()
	m.duration.WithLabelValues(normalizeLabel(route), method).Observe(elapsed.Seconds())
}

// StoreMetrics tracks the storefront's domain counters.
type StoreMetrics struct {
	ordersCreated   *prometheus.CounterVec
	paymentWebhooks *prometheus.CounterVec
	downloads       *prometheus.CounterVec
}

// NewStoreMetrics registers the domain counters on the provided registerer.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created, by payment method.",
	}, []string{"method"})
	paymentWebhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Payment webhook deliveries processed, by provider and result.",
	}, []string{"provider", "result"})
	downloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "downloads_total",
		Help: "Download attempts, by result.",
	}, []string{"result"})
	reg.MustRegister(ordersCreated, paymentWebhooks, downloads)
	return &StoreMetrics{
		ordersCreated:   ordersCreated,
		paymentWebhooks: paymentWebhooks,
		downloads:       downloads,
	}
}

// IncOrderCreated increments the order counter for the payment method.
func (m *StoreMetrics) IncOrderCreated(method string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncPaymentWebhook increments the webhook counter.
func (m *StoreMetrics) IncPaymentWebhook(provider, result string) {
	if m == nil || m.paymentWebhooks == nil {
		return
	}
	m.paymentWebhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

// IncDownload increments the download counter for the given result.
func (m *StoreMetrics) IncDownload(result string) {
	if m == nil || m.downloads == nil {
		return
	}
	m.downloads.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
