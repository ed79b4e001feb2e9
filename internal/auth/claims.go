package auth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleList unmarshals the "roles" claim whether the issuer encodes it as a
// JSON array or a single string.
type RoleList []string

func (r *RoleList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*r = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*r = RoleList{one}
	return nil
}

// Claims are the verified token claims carried for the lifetime of a session.
// They are derived once per connection and never re-verified; only the
// remaining lifetime is recomputed.
type Claims struct {
	Roles RoleList `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HasAnyRole reports whether the token carries at least one of the named
// roles, case-insensitively.
func (c *Claims) HasAnyRole(names ...string) bool {
	for _, have := range c.Roles {
		for _, want := range names {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

// Remaining returns the token lifetime left at the given instant. Zero or
// negative means expired. Tokens without an exp claim never reach this point;
// verification requires one.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

type claimsKey struct{}

// WithClaims injects verified claims into the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom retrieves verified claims from the context, or nil for
// anonymous requests.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}
