package middleware

import (
	"net/http"
	"strconv"

	"github.com/rajasatyajit/TransitDisruptions/internal/logger"
	"github.com/rajasatyajit/TransitDisruptions/internal/ratelimit"
)

// RedisRateLimit enforces the manager's per-client limit across replicas.
// With a nil manager it no-ops. Redis failures let the request through.
func RedisRateLimit(m *ratelimit.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, reset, err := m.CheckRate(r.Context(), clientIP(r))
			if err != nil {
				logger.WithContext(r.Context()).Warn("Rate limit check failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(reset))

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(reset))
				write429(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
