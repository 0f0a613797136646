// Package metrics exposes Prometheus instrumentation for the bridge: one
// set of series for inbound DAV requests, one for outbound REST backend
// calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "davbridge_http_requests_total",
		Help: "Total number of DAV requests processed.",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "davbridge_http_request_duration_seconds",
		Help:    "Histogram of latencies for DAV requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})

	backendCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "davbridge_backend_calls_total",
		Help: "Total number of REST backend calls issued.",
	}, []string{"service", "operation", "outcome"})

	backendCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "davbridge_backend_call_duration_seconds",
		Help:    "Histogram of REST backend call latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "operation"})
)

// Middleware records request count and latency for every inbound request.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := strconv.Itoa(ww.Status())
			httpRequestsTotal.WithLabelValues(r.Method, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, status).Observe(time.Since(start).Seconds())
		})
	}
}

// ObserveBackendCall records one outbound REST call.
func ObserveBackendCall(service, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	backendCallsTotal.WithLabelValues(service, operation, outcome).Inc()
	backendCallDuration.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
