package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/diagnosis/service-sphere/internal/http/response"
	"github.com/diagnosis/service-sphere/pkg/auth"
	"github.com/diagnosis/service-sphere/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// TokenVerifier turns a raw bearer token into claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// RequireJWT rejects requests without a valid bearer token. Verification
// never touches the database.
func RequireJWT(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
			if !strings.HasPrefix(authz, "Bearer ") || raw == "" {
				response.Unauthorized(w, "Token not provided")
				return
			}
			claims, err := v.Verify(raw)
			if err != nil {
				logger.DebugContext(r.Context(), "Rejected bearer token", "error", err)
				response.WriteError(w, http.StatusUnauthorized, "Invalid token", response.CodeInvalidToken)
				return
			}
			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			ctx = context.WithValue(ctx, logger.UserIDKey, claims.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after RequireJWT.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := Claims(r)
			if c == nil {
				response.Unauthorized(w, "Token not provided")
				return
			}
			if c.Role != role {
				response.Forbidden(w, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func Claims(r *http.Request) *auth.Claims {
	v, _ := r.Context().Value(CtxClaims).(*auth.Claims)
	return v
}

// Actor returns the caller named by the token, or nil outside RequireJWT.
func Actor(r *http.Request) *domain.Actor {
	c := Claims(r)
	if c == nil {
		return nil
	}
	return &domain.Actor{ID: c.ID, Name: c.Name, Email: c.Email, Role: c.Role}
}
