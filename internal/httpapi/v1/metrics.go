package v1

import (
    "net/http"
    "strconv"
    "time"

    chi "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    httpRequestsTotal = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bank",
            Name:      "http_requests_total",
            Help:      "Total number of HTTP requests",
        },
        []string{"method", "route", "status"},
    )
    httpRequestDuration = promauto.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "bank",
            Name:      "http_request_duration_seconds",
            Help:      "Duration of HTTP requests in seconds",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"method", "route", "status"},
    )
    ledgerOperationsTotal = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bank",
            Name:      "ledger_operations_total",
            Help:      "Balance operations by type and outcome",
        },
        []string{"op", "outcome"},
    )
)

func metricsHandler() http.Handler {
    return promhttp.Handler()
}

func metricsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
        start := time.Now()
        next.ServeHTTP(ww, r)
        // route pattern keeps account numbers out of label values
        route := "unmatched"
        if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
            route = rc.RoutePattern()
        }
        status := strconv.Itoa(ww.Status())
        httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
        httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
    })
}

// observeOperation counts a balance operation; outcome is "ok" or an error code.
func observeOperation(op string, err error) {
    outcome := "ok"
    if err != nil {
        _, outcome = errorCode(err)
    }
    ledgerOperationsTotal.WithLabelValues(op, outcome).Inc()
}
