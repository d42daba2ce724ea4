package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/ports"
)

type claimsKey struct{}

// AuthMiddleware validates bearer tokens and enforces capabilities.
type AuthMiddleware struct {
	tokens ports.TokenService
}

// NewAuthMiddleware creates the middleware around a token service.
func NewAuthMiddleware(tokens ports.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth rejects requests without a valid bearer token and stores
// the validated claims in the request context.
func (m *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeUnauthorized(w, "authorization header required")
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			writeUnauthorized(w, "invalid authorization header format")
			return
		}
		claims, err := m.tokens.Validate(parts[1])
		if err != nil {
			writeUnauthorized(w, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// RequireCapability additionally demands a specific capability.
func (m *AuthMiddleware) RequireCapability(cap domain.Capability, next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())
		if claims == nil {
			writeUnauthorized(w, "not authenticated")
			return
		}
		for _, c := range claims.Capabilities {
			if c == cap {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeForbidden(w, "capability "+string(cap)+" required")
	})
}

// ClaimsFrom retrieves the validated token claims, if any.
func ClaimsFrom(ctx context.Context) *ports.TokenClaims {
	if claims, ok := ctx.Value(claimsKey{}).(*ports.TokenClaims); ok {
		return claims
	}
	return nil
}

// capabilitiesOf builds the capability set of the authenticated caller.
func capabilitiesOf(claims *ports.TokenClaims) domain.CapabilitySet {
	return domain.NewCapabilitySet(claims.Capabilities...)
}
