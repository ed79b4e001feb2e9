// Package auth verifies bearer tokens against the rotating JWKS key set and
// exposes the resulting claims to the rest of the service.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"talentstream/internal/auth/jwks"
	dErrors "talentstream/pkg/domain-errors"
)

// Verifier validates RS256 tokens using cached signing keys. When an audience
// is configured, issuer and audience claims become mandatory; otherwise only
// expiry and issued-at are checked.
type Verifier struct {
	cache    *jwks.Cache
	audience string
	issuer   string
}

// NewVerifier constructs a Verifier around a key cache.
func NewVerifier(cache *jwks.Cache, audience, issuer string) (*Verifier, error) {
	if cache == nil {
		return nil, fmt.Errorf("jwks cache is required")
	}
	return &Verifier{
		cache:    cache,
		audience: audience,
		issuer:   issuer,
	}, nil
}

// Verify parses and validates the token, returning its claims.
// All validation failures map to CodeUnauthorized; a key-distribution outage
// with an empty cache maps to CodeUnavailable.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
		if v.issuer != "" {
			opts = append(opts, jwt.WithIssuer(v.issuer))
		}
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}
		return v.cache.SigningKey(ctx, kid)
	}, opts...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token expired")
		case errors.Is(err, jwks.ErrUnknownKey):
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "unknown signing key")
		case errors.Is(err, jwks.ErrKeysUnavailable):
			// Upstream key-distribution outage with an empty cache; this is
			// the one verification failure that is not the caller's fault.
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "signing keys unavailable")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
		}
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}
