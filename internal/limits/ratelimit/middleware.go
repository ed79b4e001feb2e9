package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"talentstream/internal/auth"
	"talentstream/pkg/platform/httputil"
)

// exempt paths never count against a limit.
var exempt = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Middleware applies the request limiter, keying by authenticated subject
// when upstream middleware attached verified claims, otherwise by client IP.
type Middleware struct {
	primary  Limiter
	fallback Limiter
	limit    int
	window   time.Duration
	logger   *slog.Logger
}

// New constructs the middleware. Fallback may be nil, in which case a
// primary failure admits the request (fail open all the way down).
func New(primary, fallback Limiter, limit int, window time.Duration, opts ...Option) *Middleware {
	m := &Middleware{
		primary:  primary,
		fallback: fallback,
		limit:    limit,
		window:   window,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = logger
	}
}

// Handler wraps next with rate limiting.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		key := "rate_limit:" + clientKey(r)

		allowed, err := m.primary.Allow(r.Context(), key)
		if err != nil {
			if m.logger != nil {
				m.logger.DebugContext(r.Context(), "primary rate limiter unavailable", "error", err)
			}
			allowed = true
			if m.fallback != nil {
				allowed, _ = m.fallback.Allow(r.Context(), key)
			}
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Window", strconv.Itoa(int(m.window.Seconds())))

		if !allowed {
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limited",
				"error_description": "rate limit exceeded, please try again later",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey prefers the claims a downstream auth middleware already
// verified; otherwise the client IP identifies the caller.
func clientKey(r *http.Request) string {
	if claims := auth.ClaimsFrom(r.Context()); claims != nil && claims.Subject != "" {
		return "user:" + claims.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return strings.TrimSpace(host)
}
