// Package httptransport is the thin HTTP layer: routing, middleware order,
// and translation between requests and domain services.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"talentstream/internal/auth"
	"talentstream/internal/limits/ratelimit"
)

// NewRouter wires all endpoints. Middleware order matters: claims are
// attached before rate limiting so authenticated callers are limited by
// subject rather than by IP.
func NewRouter(h *Handler, verifier *auth.Verifier, limiter *ratelimit.Middleware, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(auth.Attach(verifier, h.logger))
	if limiter != nil {
		r.Use(limiter.Handler)
	}

	r.Get("/health", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Bearer token deliberately optional here: anonymous clients are
	// admitted without a slot, authenticated ones are capped per subject.
	r.Get("/admin/audit-logs/stream", h.HandleStream)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles("admin", "auditor"))
		r.Get("/admin/audit-logs", h.HandleAuditLogs)
		r.Get("/admin/metrics", h.HandleCounters)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles("admin", "service"))
		r.Post("/events", h.HandleIngest)
	})

	return r
}
