package middleware

import (
	"net/http"
	"time"

	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/observability"
)

// Observability records request count, latency and concurrency. Paths outside
// routes are reported as "other".
func Observability(metrics *observability.Metrics, routes ...string) func(http.Handler) http.Handler {
	known := make(map[string]bool, len(routes))
	for _, r := range routes {
		known[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			metrics.HTTPRequestsActive.Add(ctx, 1)
			defer metrics.HTTPRequestsActive.Add(ctx, -1)

			rw := wrap(w)
			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if !known[route] {
				route = "other"
			}
			metrics.RecordHTTPRequest(ctx, r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}
