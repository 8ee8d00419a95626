package auth

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/BradenHooton/csm/internal/models"
	pkghttp "github.com/BradenHooton/csm/pkg/http"
)

type contextKey string

// UserContextKey is the key for storing token claims in context
const UserContextKey contextKey = "user"

// Middleware validates the bearer token, rejects revoked tokens and injects
// the claims into the request context. A failing revocation lookup denies
// access.
func Middleware(tm *TokenManager, revocations RevocationStore, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			if revocations != nil {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					logger.Error("token revocation check failed", slog.Any("error", err))
					pkghttp.WriteError(w, http.StatusServiceUnavailable, models.KeyStorageUnavailable, "unable to verify token status")
					return
				}
				if revoked {
					pkghttp.WriteUnauthorized(w, "token has been revoked")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// UserLookup reads the current user record; nil means the user is gone
type UserLookup interface {
	Get(ctx context.Context, userID string) (*models.User, error)
}

// CurrentRoles replaces the token's roles with the roles stored for the
// subject, so a deleted or demoted user loses access before the token
// expires. Must run after Middleware.
func CurrentRoles(users UserLookup, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			user, err := users.Get(r.Context(), claims.UserID)
			if err != nil {
				logger.Error("user lookup failed", slog.String("user_id", claims.UserID), slog.Any("error", err))
				pkghttp.WriteError(w, http.StatusServiceUnavailable, models.KeyStorageUnavailable, "unable to verify user")
				return
			}
			if user == nil {
				pkghttp.WriteUnauthorized(w, "user no longer exists")
				return
			}

			current := *claims
			current.Roles = slices.Clone(user.Roles)
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), &current)))
		})
	}
}

// RequireRole admits requests whose caller holds at least one of roles.
// Must run after Middleware and CurrentRoles.
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}
			for _, role := range roles {
				if claims.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			pkghttp.WriteForbidden(w, "insufficient permissions")
		})
	}
}

// BearerToken extracts the token from the Authorization header
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func WithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// ClaimsFromContext returns the authenticated caller, or nil
func ClaimsFromContext(ctx context.Context) *models.TokenClaims {
	claims, _ := ctx.Value(UserContextKey).(*models.TokenClaims)
	return claims
}

// Caller returns the authenticated user id, or "" for anonymous requests
func Caller(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}
