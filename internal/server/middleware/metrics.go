package middleware

import (
	"net/http"
	"time"

	"github.com/ehrgate/ehrgate/internal/telemetry"
)

// Metrics records request counts, latencies, and in-flight requests by
// route pattern. A nil m disables it.
func Metrics(m *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := wrap(w)
			m.InFlight(1)
			defer m.InFlight(-1)

			next.ServeHTTP(ww, r)

			m.ObserveHTTP(r.Method, routePattern(r), ww.status, time.Since(start))
		})
	}
}
