package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"
)

// Middleware throttles abusive clients on the public verification
// endpoints. Each client IP gets its own resend entry, so a scripted
// caller hammering the resend or guest-verification routes is cut off
// without affecting other shoppers behind different addresses.
type Middleware struct {
	limiter *ResendLimiter
}

// NewMiddleware creates a per-IP throttling middleware.
// minInterval: minimum gap between requests from the same IP
// maxPerHour: maximum requests per IP per UTC clock hour
func NewMiddleware(minInterval time.Duration, maxPerHour int) *Middleware {
	return &Middleware{
		// Keep entries for an hour after last use
		limiter: NewResendLimiter(minInterval, maxPerHour, time.Hour),
	}
}

// Handler returns the throttling middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if ip != "" && !m.limiter.Allow(ip) {
			m.throttled(w, r, ip)
			return
		}
		if ip != "" {
			m.limiter.Record(ip)
		}

		next.ServeHTTP(w, r)
	})
}

// throttled handles rate limit exceeded responses
func (m *Middleware) throttled(w http.ResponseWriter, r *http.Request, ip string) {
	retryAfter := m.limiter.RetryAfter(ip)

	slog.Warn("Request throttled",
		"ip", ip,
		"path", r.URL.Path,
		"method", r.Method,
		"retry_after", retryAfter,
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(retryAfter.Seconds()))))
	w.WriteHeader(http.StatusTooManyRequests)

	w.Write([]byte(`{
		"error": "rate_limit_exceeded",
		"message": "Too many requests. Please try again later."
	}`))
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (set by proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header (set by some proxies/load balancers)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr
	// RemoteAddr is in format "IP:port", we only want the IP
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}

	return addr
}
