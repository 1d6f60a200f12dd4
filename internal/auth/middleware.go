package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/palisadehq/palisade/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// CallerContextKey is the key for storing caller claims in context
	CallerContextKey contextKey = "caller"
)

// RequireAuth validates the bearer token and injects caller claims into the
// request context. Attempt recording is the only unauthenticated operation;
// everything else on the security surface goes through this.
func RequireAuth(tv *TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := tv.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CallerContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCallerFromContext returns the caller claims set by RequireAuth, or nil.
func GetCallerFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(CallerContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// CanActOn reports whether the caller may operate on the given subject:
// either the caller is that subject or carries the administrator role.
func CanActOn(claims *models.TokenClaims, subjectKey string) bool {
	if claims == nil {
		return false
	}
	return claims.IsAdmin() || claims.SubjectKey == subjectKey
}
