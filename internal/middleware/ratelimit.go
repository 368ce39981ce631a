// File: internal/middleware/ratelimit.go
package middleware

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/weichi/go-chatroom/internal/ratelimit"
)

// RateLimitMiddleware creates a rate limiting middleware keyed by client IP.
func RateLimitMiddleware(limiter *ratelimit.MemoryRateLimiter, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ratelimit.GetClientIP(r)

			allowed, remaining := limiter.Allow(clientIP)
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

			if !allowed {
				log.Printf("[RateLimit] Blocked %s request from %s", name, clientIP)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "too many attempts, please try again later",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
