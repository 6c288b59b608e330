// Package metrics contains middlewares and counters for metrics gathering.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatchedRoute = "unmatched"

// HTTP Requests total counter
var totalRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "clinic",
		Name:      "http_requests_total",
		Help:      "HTTP Requests.",
	},
	[]string{"method", "route", "code"},
)

// HTTP Requests duration
var duration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "clinic",
		Name:      "http_duration_seconds",
		Help:      "HTTP Requests Duration",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

func init() {
	prometheus.MustRegister(totalRequests, duration)
}

// routePattern returns the chi pattern matched by the request, so path parameters do not
// create a label value per appointment.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}

// PrometheusMiddleware instruments the given request and register metrics.
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(seconds float64) {
			duration.WithLabelValues(r.Method, routePattern(r)).Observe(seconds)
		}))
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		totalRequests.WithLabelValues(r.Method, routePattern(r), strconv.Itoa(status)).Inc()
		timer.ObserveDuration()
	})
}

// Handler exposes the metrics registered on the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
