package httpapi

import (
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimitMiddleware shields the proxy from runaway local callers with a
// single process-wide token bucket. It is deliberately not per-client or
// per-IP: the proxy trusts localhost callers, so one shared bucket is enough.
func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"error": map[string]any{"kind": "rate_limited", "message": "too many requests"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
