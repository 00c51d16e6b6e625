package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bryanwahyu/insight-relay/internal/metrics"
)

// Metrics tracks request counts, latency and in-flight requests
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		wrapped := wrapWriter(w)

		next.ServeHTTP(wrapped, r)

		route := routePattern(r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
