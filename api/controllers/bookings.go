package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/api/validators"
	"github.com/angelmondragon/petshop-storefront/internal/bookings"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
	"github.com/angelmondragon/petshop-storefront/pkg/pagination"
)

// BookingService is the booking lifecycle as the handlers use it.
type BookingService interface {
	Create(ctx context.Context, actor users.Principal, in bookings.CreateInput) (bookings.Booking, error)
	Cancel(ctx context.Context, actor users.Principal, bookingID string) (bookings.Booking, error)
	MarkPaid(ctx context.Context, actor users.Principal, bookingID string) (bookings.Booking, error)
	Confirm(ctx context.Context, actor users.Principal, bookingID string) (bookings.Booking, error)
	Complete(ctx context.Context, actor users.Principal, bookingID string) (bookings.Booking, error)
	ListByOwner(ctx context.Context, actor users.Principal, ownerID string) ([]bookings.Booking, error)
	ListAll(ctx context.Context, actor users.Principal) ([]bookings.Booking, error)
	Cached(ctx context.Context, actor users.Principal) ([]bookings.Booking, bool)
	RequestBooking(ctx context.Context, serviceID string) (bookings.Draft, error)
	CurrentDraft(ctx context.Context) (bookings.Draft, bool)
}

type bookingListResponse struct {
	Bookings   []bookings.Booking `json:"bookings"`
	Stale      bool               `json:"stale"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

type bookingRequest struct {
	ServiceID string `json:"serviceId" validate:"required,max=128"`
}

type bookingTransition func(ctx context.Context, actor users.Principal, bookingID string) (bookings.Booking, error)

// BookingsMine lists the caller's bookings newest first. When the remote
// store is unreachable the cached listing is served and flagged stale.
func BookingsMine(svc BookingService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "booking service")
			return
		}
		p := actor(r)
		list, err := svc.ListByOwner(r.Context(), p, p.ID)
		if err != nil {
			cached, ok := svc.Cached(r.Context(), p)
			if !ok {
				fail(w, r, n, logg, err)
				return
			}
			if n != nil {
				n.Error(r.Context(), err)
			}
			responses.WriteSuccess(w, bookingListResponse{Bookings: nonNilBookings(cached), Stale: true})
			return
		}
		responses.WriteSuccess(w, bookingListResponse{Bookings: nonNilBookings(list)})
	}
}

// BookingsCreate books a service for the caller.
func BookingsCreate(svc BookingService, n Notifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "booking service")
			return
		}
		var in bookings.CreateInput
		if err := validators.DecodeJSONBody(r, &in); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		b, err := svc.Create(r.Context(), actor(r), in)
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		if n != nil {
			n.Success(r.Context(), "Booked "+b.ServiceName+" on "+b.Date+" at "+b.Time)
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, b)
	}
}

func BookingsCancel(svc BookingService, n Notifier, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return transition(nil, n, "", logg)
	}
	return transition(svc.Cancel, n, "Booking cancelled", logg)
}

func BookingsMarkPaid(svc BookingService, n Notifier, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return transition(nil, n, "", logg)
	}
	return transition(svc.MarkPaid, n, "Booking marked as paid", logg)
}

func BookingsConfirm(svc BookingService, n Notifier, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return transition(nil, n, "", logg)
	}
	return transition(svc.Confirm, n, "Booking confirmed", logg)
}

func BookingsComplete(svc BookingService, n Notifier, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return transition(nil, n, "", logg)
	}
	return transition(svc.Complete, n, "Booking completed", logg)
}

func transition(apply bookingTransition, n Notifier, success string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if apply == nil {
			unavailable(w, r, logg, "booking service")
			return
		}
		id, err := validators.PathID("booking id", chi.URLParam(r, "bookingID"))
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		b, err := apply(r.Context(), actor(r), id)
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		if n != nil {
			n.Success(r.Context(), success)
		}
		responses.WriteSuccess(w, b)
	}
}

// BookingsRequest records a booking draft and opens the booking panel.
func BookingsRequest(svc BookingService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "booking service")
			return
		}
		var req bookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		d, err := svc.RequestBooking(r.Context(), req.ServiceID)
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, d)
	}
}

func BookingsDraft(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "booking service")
			return
		}
		d, ok := svc.CurrentDraft(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		responses.WriteSuccess(w, d)
	}
}

// AdminBookingsList lists every booking, or one owner's with ?owner=, newest
// first in pages of ?limit= resumed from ?cursor=.
func AdminBookingsList(svc BookingService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "booking service")
			return
		}
		limit, err := validators.ParseQueryInt64(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		var list []bookings.Booking
		if owner := validators.SanitizeString(r.URL.Query().Get("owner"), 128); owner != "" {
			list, err = svc.ListByOwner(r.Context(), actor(r), owner)
		} else {
			list, err = svc.ListAll(r.Context(), actor(r))
		}
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		page, next, err := pagination.Page(list, pagination.Params{Limit: int(limit), Cursor: r.URL.Query().Get("cursor")}, bookingCursor)
		if err != nil {
			fail(w, r, n, logg, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}
		responses.WriteSuccess(w, bookingListResponse{Bookings: nonNilBookings(page), NextCursor: next})
	}
}

func bookingCursor(b bookings.Booking) pagination.Cursor {
	return pagination.Cursor{CreatedAt: b.CreatedAt, ID: b.ID}
}

func nonNilBookings(list []bookings.Booking) []bookings.Booking {
	if list == nil {
		return []bookings.Booking{}
	}
	return list
}
