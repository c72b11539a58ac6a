package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	purchasesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_recorded_total",
			Help: "Total number of purchases recorded",
		},
		[]string{"status"},
	)

	leadsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_captured_total",
			Help: "Total number of quiz leads captured",
		},
		[]string{"source", "outcome"},
	)

	aiLeadsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_leads_captured_total",
			Help: "Total number of chat leads captured",
		},
		[]string{"outcome"},
	)

	emailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_processed_total",
			Help: "Total number of delivery email tasks processed",
		},
		[]string{"status"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics labels requests by chi route pattern so ids in the path do not explode cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func RecordPurchase(status string) {
	purchasesRecorded.WithLabelValues(status).Inc()
}

func RecordLeadCaptured(source, outcome string) {
	leadsCaptured.WithLabelValues(source, outcome).Inc()
}

func RecordAILeadCaptured(outcome string) {
	aiLeadsCaptured.WithLabelValues(outcome).Inc()
}

func RecordEmailProcessed(status string) {
	emailsProcessed.WithLabelValues(status).Inc()
}

func RecordRateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}
