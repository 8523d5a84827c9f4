// Package controllers exposes the storefront's surface actions as HTTP
// handlers. Every failure is raised as an error notification before it is
// rendered.
package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/petshop-storefront/api/middleware"
	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// ErrorNotifier surfaces failures to the user.
type ErrorNotifier interface {
	Error(ctx context.Context, err error)
}

// Notifier raises both success and error toasts.
type Notifier interface {
	ErrorNotifier
	Success(ctx context.Context, message string)
}

func fail(w http.ResponseWriter, r *http.Request, n ErrorNotifier, logg *logger.Logger, err error) {
	if n != nil {
		n.Error(r.Context(), err)
	}
	responses.WriteError(r.Context(), logg, w, err)
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, what string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s unavailable", what))
}

// actor returns the principal attached by the session middleware, or the
// zero principal for anonymous callers.
func actor(r *http.Request) users.Principal {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p
}
