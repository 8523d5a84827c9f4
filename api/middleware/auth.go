package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// PrincipalSource resolves the acting principal of the storefront session.
type PrincipalSource interface {
	Current(ctx context.Context) (users.Principal, bool)
}

// Session seeds the request context with the current principal, if any.
func Session(src PrincipalSource, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src == nil {
				next.ServeHTTP(w, r)
				return
			}
			p, ok := src.Current(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			if logg != nil {
				ctx = logg.WithPrincipalID(ctx, p.ID)
				ctx = logg.WithFields(ctx, map[string]any{
					"actor_role": p.Role.String(),
					"guest":      p.Guest,
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated admits signed-in customers. Guests are refused.
func RequireAuthenticated(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || p.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required"))
				return
			}
			if p.Guest {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "guests must sign in first"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
