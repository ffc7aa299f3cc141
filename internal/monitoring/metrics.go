package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// AI Provider metrics
	ProviderLatency  *prometheus.HistogramVec
	ProviderRequests *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec

	// Quota metrics
	QuotaRemaining   *prometheus.GaugeVec
	QuotaUsed        *prometheus.CounterVec
	QuotaDenials     *prometheus.CounterVec
	QuotaStoreErrors prometheus.Counter

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		ProviderLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ai_provider_latency_seconds",
				Help:    "AI provider response latency in seconds",
				Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"provider", "model"},
		),
		ProviderRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_provider_requests_total",
				Help: "Total number of requests to AI providers",
			},
			[]string{"provider", "model", "status"},
		),
		ProviderErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_provider_errors_total",
				Help: "Total number of errors from AI providers",
			},
			[]string{"provider", "model", "error_type"},
		),

		QuotaRemaining: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quota_remaining_calls",
				Help: "Remaining daily API calls per plan tier",
			},
			[]string{"plan_tier"},
		),
		QuotaUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_used_total",
				Help: "Total counted API calls",
			},
			[]string{"plan_tier"},
		),
		QuotaDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_denials_total",
				Help: "Total requests denied by the quota engine",
			},
			[]string{"plan_tier"},
		),
		QuotaStoreErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "quota_store_errors_total",
				Help: "Total quota store failures resolved by failing open",
			},
		),

		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 0.5=half-open)",
			},
			[]string{"provider"},
		),
	}

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	if metrics == nil {
		return Init()
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordProviderLatency records AI provider latency
func RecordProviderLatency(provider, model string, duration time.Duration) {
	Get().ProviderLatency.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordProviderRequest records an AI provider request
func RecordProviderRequest(provider, model, status string) {
	Get().ProviderRequests.WithLabelValues(provider, model, status).Inc()
}

// RecordProviderError records an AI provider error
func RecordProviderError(provider, model, errorType string) {
	Get().ProviderErrors.WithLabelValues(provider, model, errorType).Inc()
}

// RecordQuotaUsage records a counted API call
func RecordQuotaUsage(planTier string) {
	Get().QuotaUsed.WithLabelValues(planTier).Inc()
}

// SetQuotaRemaining sets the remaining-call gauge for a plan tier
func SetQuotaRemaining(planTier string, remaining float64) {
	Get().QuotaRemaining.WithLabelValues(planTier).Set(remaining)
}

// RecordQuotaDenial records a request denied by the quota engine
func RecordQuotaDenial(planTier string) {
	Get().QuotaDenials.WithLabelValues(planTier).Inc()
}

// RecordQuotaStoreError records a quota store failure that failed open
func RecordQuotaStoreError() {
	Get().QuotaStoreErrors.Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
// state: 0=closed, 1=open, 0.5=half-open
func SetCircuitBreakerState(provider string, state float64) {
	Get().CircuitBreakerState.WithLabelValues(provider).Set(state)
}
