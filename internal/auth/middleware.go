package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "talentstream/pkg/domain-errors"
	"talentstream/pkg/platform/httputil"
)

const bearerPrefix = "Bearer "

// BearerToken extracts the bearer token from a request, or "" when absent.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, bearerPrefix); ok {
		return after
	}
	return ""
}

// Attach verifies a bearer token when one is present and stores the claims
// in the request context. Requests without a token pass through anonymously;
// requests with an invalid token are rejected. Role enforcement is left to
// RequireRoles on the routes that need it.
func Attach(verifier *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" || verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if logger != nil {
					logger.WarnContext(r.Context(), "rejected bearer token", "error", err)
				}
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRoles guards a route: the request must carry verified claims with
// at least one of the given roles.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFrom(r.Context())
			if claims == nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !claims.HasAnyRole(roles...) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
