package controllers

import (
	"context"
	"math"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/api/validators"
	"github.com/angelmondragon/petshop-storefront/internal/checkout"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// CheckoutService is the checkout flow as the handlers use it.
type CheckoutService interface {
	Start(ctx context.Context) (checkout.Snapshot, error)
	Quote(ctx context.Context, actor users.Principal, method enums.PaymentMethod, requested int64) (checkout.Totals, error)
	Confirm(ctx context.Context, actor users.Principal, req checkout.Request) (checkout.Receipt, error)
	Abandon(ctx context.Context)
}

// CheckoutStart snapshots the cart for the checkout page.
func CheckoutStart(svc CheckoutService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout service")
			return
		}
		snap, err := svc.Start(r.Context())
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, snap)
	}
}

// CheckoutQuote prices the checkout for ?method= and ?credits=.
func CheckoutQuote(svc CheckoutService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout service")
			return
		}
		method, err := enums.ParsePaymentMethod(strings.TrimSpace(r.URL.Query().Get("method")))
		if err != nil {
			fail(w, r, n, logg, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method"))
			return
		}
		requested, err := validators.ParseQueryInt64(r, "credits", 0, 0, math.MaxInt32)
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		totals, err := svc.Quote(r.Context(), actor(r), method, requested)
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, totals)
	}
}

// CheckoutConfirm places the order. A second submission while one is in
// flight is refused.
func CheckoutConfirm(svc CheckoutService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	var inProgress atomic.Bool
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout service")
			return
		}
		var req checkout.Request
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		if !inProgress.CompareAndSwap(false, true) {
			fail(w, r, n, logg, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress"))
			return
		}
		defer inProgress.Store(false)

		receipt, err := svc.Confirm(r.Context(), actor(r), req)
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, receipt)
	}
}

// CheckoutAbandon discards the checkout snapshot.
func CheckoutAbandon(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout service")
			return
		}
		svc.Abandon(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}
