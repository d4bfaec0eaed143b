package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crmcal_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crmcal_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crmcal_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crmcal_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})

	gesturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crmcal_grid_gestures_total",
		Help: "Completed grid gestures by kind and outcome.",
	}, []string{"kind", "outcome"})

	mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crmcal_event_mutation_duration_seconds",
		Help:    "Time from optimistic override to settle of an event mutation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "outcome"})

	pendingOverrides = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crmcal_optimistic_overrides",
		Help: "Optimistic overrides currently masking remote event times.",
	})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crmcal_event_changes_published_total",
		Help: "Event change notifications published, by change kind and result.",
	}, []string{"change", "result"})
)

// Gesture outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeNoop      = "noop"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Middleware records request count, latency and server errors per route pattern.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			// chi fills the pattern while routing.
			route := routePattern(r)
			status := ww.Status()
			method := r.Method
			duration := time.Since(start).Seconds()
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(method, route).Inc()
			httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration)
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(method, route, statusCode).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDBLatency records database latency for a given operation, labelled with the route that issued it when known.
func ObserveDBLatency(ctx context.Context, operation string, start time.Time) {
	route := routeFromContext(ctx)
	dbLatency.WithLabelValues(operation, route).Observe(time.Since(start).Seconds())
}

// ObserveGesture counts a finished gesture.
func ObserveGesture(kind, outcome string) {
	gesturesTotal.WithLabelValues(kind, outcome).Inc()
}

// TrackMutation marks an optimistic override as pending and returns a func
// that records its settle outcome.
func TrackMutation(kind string) func(err error) {
	start := time.Now()
	pendingOverrides.Inc()
	return func(err error) {
		pendingOverrides.Dec()
		outcome := OutcomeSucceeded
		if err != nil {
			outcome = OutcomeFailed
		}
		mutationDuration.WithLabelValues(kind, outcome).Observe(time.Since(start).Seconds())
	}
}

// ObservePublish counts an event change notification.
func ObservePublish(change string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsPublished.WithLabelValues(change, result).Inc()
}

func routeFromContext(ctx context.Context) string {
	if rctx := chi.RouteContext(ctx); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

func routePattern(r *http.Request) string {
	if route := routeFromContext(r.Context()); route != "unknown" {
		return route
	}
	return "unmatched"
}
