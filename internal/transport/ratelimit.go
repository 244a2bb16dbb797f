// Copyright 2025 Joseph Cumines
//
// Token bucket rate limiter for HTTP transport

package transport

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket limiter with a burst of twice the rate.
// When the bucket is empty, requests are rejected with HTTP 429 Too Many Requests.
// A nil *RateLimiter allows everything.
type RateLimiter struct {
	limiter *rate.Limiter
	clock   func() time.Time
}

// NewRateLimiter creates a new rate limiter with the specified rate.
// Returns nil if rate is 0 or negative (disabling rate limiting).
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	return NewRateLimiterWithClock(requestsPerSecond, time.Now)
}

// NewRateLimiterWithClock creates a rate limiter with an injectable clock.
func NewRateLimiterWithClock(requestsPerSecond float64, clock func() time.Time) *RateLimiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	burst := max(int(requestsPerSecond*2), 1)
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		clock:   clock,
	}
}

// Allow reports whether a request may proceed, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.AllowN(r.clock(), 1)
}

// Tokens returns the currently available tokens, or -1 if r is nil.
func (r *RateLimiter) Tokens() float64 {
	if r == nil {
		return -1
	}
	return r.limiter.TokensAt(r.clock())
}

// RateLimitMiddleware creates HTTP middleware that applies rate limiting.
// The /health and /metrics endpoints are exempt. Returns 429 when rate limited.
// If limiter is nil, the middleware is a passthrough.
func RateLimitMiddleware(limiter *RateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/metrics":
			next.ServeHTTP(w, r)
			return
		}

		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
