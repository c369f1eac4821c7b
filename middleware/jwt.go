package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/pkg/auth"
	"tallerpro.mx/shop/utils"
)

// unexported type prevents collisions in context
type ctxKey int

const (
	userClaimsKey ctxKey = iota
)

// Authenticate validates the bearer token and stashes the claims in ctx.
func Authenticate(tokens *auth.TokenManager, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				utils.WriteError(w, log, errors.Unauthorizedf("missing Authorization header"))
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				utils.WriteError(w, log, errors.Unauthorizedf("invalid Authorization header"))
				return
			}
			claims, err := tokens.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				utils.WriteError(w, log, err)
				return
			}
			if claims.ID() == uuid.Nil {
				utils.WriteError(w, log, errors.Unauthorizedf("invalid token subject"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

// GetClaims pulls the claims out of the request context (or nil).
func GetClaims(r *http.Request) *auth.Claims {
	if c, ok := r.Context().Value(userClaimsKey).(*auth.Claims); ok {
		return c
	}
	return nil
}

// GetUserID returns the caller's id, or uuid.Nil on public routes.
func GetUserID(r *http.Request) uuid.UUID {
	if c := GetClaims(r); c != nil {
		return c.ID()
	}
	return uuid.Nil
}
