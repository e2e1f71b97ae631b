package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// KeyFunc derives the rate-limit key for a request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys requests by client IP. It honors the first hop of
// X-Forwarded-For when present (reverse proxy deployments), otherwise
// falls back to the connection's remote address.
func IPKeyFunc(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces the limiter on each request. When the limiter denies
// a request the deny handler is invoked instead of next; the caller owns
// the response shape. Limiter errors fail open: the request proceeds and
// the error is logged, so a broken limiter never takes down the endpoint.
func Middleware(limiter Limiter, key KeyFunc, logger *slog.Logger, deny, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := limiter.Allow(r.Context(), key(r))
		if err != nil {
			logger.WarnContext(r.Context(), "rate limiter error, failing open", "error", err)
			allowed = true
		}
		if !allowed {
			deny.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
