// Package remote implements the auth and document backend the storefront
// consumes: Firebase in production and an in-process stand-in offline.
package remote

import (
	"context"
	"time"

	"github.com/angelmondragon/petshop-storefront/internal/bookings"
	"github.com/angelmondragon/petshop-storefront/internal/credits"
	"github.com/angelmondragon/petshop-storefront/internal/session"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
)

// Backend is everything the storefront asks of the remote collaborator.
type Backend interface {
	session.Authenticator
	bookings.Remote
	credits.Mirror
	Close() error
}

var (
	_ Backend = (*FirebaseBackend)(nil)
	_ Backend = (*LocalBackend)(nil)
	_ Backend = (*Instrumented)(nil)
)

const defaultTimeout = 10 * time.Second

// withTimeout bounds a remote call unless the caller already set a deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

func bookingNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
}
