package middleware

import (
	"context"

	"github.com/angelmondragon/petshop-storefront/internal/users"
)

type contextKey string

const ctxPrincipal contextKey = "principal"

// PrincipalFromContext returns the principal attached by Session.
func PrincipalFromContext(ctx context.Context) (users.Principal, bool) {
	if ctx == nil {
		return users.Principal{}, false
	}
	p, ok := ctx.Value(ctxPrincipal).(users.Principal)
	return p, ok
}

// WithPrincipal injects the acting principal into the context.
func WithPrincipal(ctx context.Context, p users.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, p)
}
