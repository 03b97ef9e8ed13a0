// internal/middleware/ratelimit.go
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit throttles state-changing requests with a shared token bucket.
// Safe methods (GET, HEAD, OPTIONS) are never limited. Rejected requests get
// a 429 with the usual fail envelope.
func RateLimit(limiter *rate.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow() {
				logger.WarnContext(r.Context(), "rate limit exceeded", "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if err := json.NewEncoder(w).Encode(map[string]string{
					"status":  "fail",
					"message": "too many requests",
				}); err != nil {
					logger.ErrorContext(r.Context(), "Unable to encode JSON response", "err", err)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
