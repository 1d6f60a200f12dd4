package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/palisadehq/palisade/internal/auth"
)

// RateLimitConfig holds transport-level rate limiting configuration. This is
// the in-process, per-IP gate in front of the security endpoints; the
// store-backed limiter in internal/services enforces the distributed limits.
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultSecurityRateLimit returns the default per-IP limit for the security
// endpoints (20 requests per minute)
func DefaultSecurityRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// A zero or negative limit falls back to the default.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	if config.RequestsPerMinute <= 0 {
		config = DefaultSecurityRateLimit()
	}
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(rateLimitedHandler),
	)
}

// RateLimitByCaller creates a middleware that rate limits by the
// authenticated caller's subject key, falling back to client IP for requests
// without caller claims. A zero or negative limit falls back to the default.
func RateLimitByCaller(config RateLimitConfig) func(next http.Handler) http.Handler {
	if config.RequestsPerMinute <= 0 {
		config = DefaultSecurityRateLimit()
	}
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetCallerFromContext(r); claims != nil {
				return claims.SubjectKey, nil
			}
			return httprate.KeyByRealIP(r)
		}),
		httprate.WithLimitHandler(rateLimitedHandler),
	)
}

func rateLimitedHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}
