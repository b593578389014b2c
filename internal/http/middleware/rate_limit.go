package middleware

import (
	"net"
	"net/http"

	"github.com/diagnosis/service-sphere/internal/http/response"
	"github.com/diagnosis/service-sphere/internal/ratelimit"
	"github.com/diagnosis/service-sphere/pkg/logger"
)

// RateLimit rejects a request with 429 once the client IP exceeds the
// limiter's budget. Limiter errors let the request through.
func RateLimit(l ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			ok, err := l.Allow(r.Context(), key)
			if err != nil {
				logger.WarnContext(r.Context(), "Rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				response.RateLimit(w, "Too many requests. Try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the peer address. Forwarding headers are ignored here; behind
// a trusted proxy the router mounts chi's RealIP, which rewrites RemoteAddr.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
