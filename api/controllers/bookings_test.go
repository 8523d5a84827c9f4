package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/angelmondragon/petshop-storefront/internal/bookings"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
)

type stubBookings struct {
	BookingService

	list      []bookings.Booking
	listErr   error
	cached    []bookings.Booking
	hasCache  bool
	gotOwner  string
	created   bookings.CreateInput
	cancelErr error
}

func (s *stubBookings) ListByOwner(_ context.Context, _ users.Principal, ownerID string) ([]bookings.Booking, error) {
	s.gotOwner = ownerID
	return s.list, s.listErr
}

func (s *stubBookings) ListAll(context.Context, users.Principal) ([]bookings.Booking, error) {
	return s.list, s.listErr
}

func (s *stubBookings) Cached(context.Context, users.Principal) ([]bookings.Booking, bool) {
	return s.cached, s.hasCache
}

func (s *stubBookings) Create(_ context.Context, actor users.Principal, in bookings.CreateInput) (bookings.Booking, error) {
	s.created = in
	return bookings.Booking{ID: "b-1", OwnerID: actor.ID, ServiceName: "Bath", Date: in.Date, Time: in.Time}, nil
}

func (s *stubBookings) Cancel(_ context.Context, _ users.Principal, id string) (bookings.Booking, error) {
	if s.cancelErr != nil {
		return bookings.Booking{}, s.cancelErr
	}
	return bookings.Booking{ID: id, Status: enums.BookingStatusCancelled}, nil
}

var customer = users.Principal{ID: "u-1", Name: "Ana", Role: enums.RoleUser}

func TestBookingsMineUsesCallerID(t *testing.T) {
	t.Parallel()

	svc := &stubBookings{list: []bookings.Booking{{ID: "b-2"}, {ID: "b-1"}}}
	resp := httptest.NewRecorder()
	BookingsMine(svc, nil, nil).ServeHTTP(resp, asPrincipal(newJSONRequest(http.MethodGet, "/api/v1/bookings", ""), customer))

	body := decodeData[bookingListResponse](t, resp)
	if svc.gotOwner != "u-1" {
		t.Fatalf("expected owner u-1 got %q", svc.gotOwner)
	}
	if len(body.Bookings) != 2 || body.Stale {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestBookingsMineServesStaleCache(t *testing.T) {
	t.Parallel()

	svc := &stubBookings{
		listErr:  pkgerrors.New(pkgerrors.CodeDependency, "fetch bookings"),
		cached:   []bookings.Booking{{ID: "b-1"}},
		hasCache: true,
	}
	n := &recordingNotifier{}
	resp := httptest.NewRecorder()
	BookingsMine(svc, n, nil).ServeHTTP(resp, asPrincipal(newJSONRequest(http.MethodGet, "/api/v1/bookings", ""), customer))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	body := decodeData[bookingListResponse](t, resp)
	if !body.Stale || len(body.Bookings) != 1 {
		t.Fatalf("expected stale cached listing, got %+v", body)
	}
	if n.errorCount() != 1 {
		t.Fatalf("the remote failure must still be surfaced")
	}
}

func TestBookingsMineWithoutCacheFails(t *testing.T) {
	t.Parallel()

	svc := &stubBookings{listErr: pkgerrors.New(pkgerrors.CodeDependency, "fetch bookings")}
	resp := httptest.NewRecorder()
	BookingsMine(svc, &recordingNotifier{}, nil).ServeHTTP(resp, asPrincipal(newJSONRequest(http.MethodGet, "/api/v1/bookings", ""), customer))
	expectCode(t, resp, pkgerrors.CodeDependency)
}

func TestBookingsCreateNotifiesSuccess(t *testing.T) {
	t.Parallel()

	svc := &stubBookings{}
	n := &recordingNotifier{}
	body := `{"serviceId":"svc-bath","date":"2026-03-12","time":"10:30","petName":"Rex","petSpecies":"dog","petAge":3,"paymentMethod":"cash"}`
	resp := httptest.NewRecorder()
	BookingsCreate(svc, n, nil).ServeHTTP(resp, asPrincipal(newJSONRequest(http.MethodPost, "/api/v1/bookings", body), customer))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.created.PetName != "Rex" || svc.created.PaymentMethod != enums.PaymentMethodCash {
		t.Fatalf("unexpected input %+v", svc.created)
	}
	if n.successCount() != 1 {
		t.Fatalf("expected a success notification")
	}
}

func TestBookingsCancelMapsErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		code pkgerrors.Code
	}{
		{name: "missing", err: pkgerrors.New(pkgerrors.CodeNotFound, "booking not found"), code: pkgerrors.CodeNotFound},
		{name: "foreign", err: pkgerrors.New(pkgerrors.CodeForbidden, "not your booking"), code: pkgerrors.CodeForbidden},
		{name: "confirmed", err: pkgerrors.New(pkgerrors.CodeStateConflict, "only pending bookings can be cancelled"), code: pkgerrors.CodeStateConflict},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			n := &recordingNotifier{}
			req := withURLParam(asPrincipal(newJSONRequest(http.MethodPost, "/api/v1/bookings/b-1/cancel", ""), customer), "bookingID", "b-1")
			resp := httptest.NewRecorder()
			BookingsCancel(&stubBookings{cancelErr: tc.err}, n, nil).ServeHTTP(resp, req)
			expectCode(t, resp, tc.code)
			if n.errorCount() != 1 {
				t.Fatalf("expected error notification")
			}
		})
	}
}

func TestBookingsCancelSuccess(t *testing.T) {
	t.Parallel()

	req := withURLParam(asPrincipal(newJSONRequest(http.MethodPost, "/api/v1/bookings/b-9/cancel", ""), customer), "bookingID", "b-9")
	resp := httptest.NewRecorder()
	BookingsCancel(&stubBookings{}, &recordingNotifier{}, nil).ServeHTTP(resp, req)

	b := decodeData[bookings.Booking](t, resp)
	if b.ID != "b-9" || b.Status != enums.BookingStatusCancelled {
		t.Fatalf("unexpected booking %+v", b)
	}
}

func TestAdminBookingsListFiltersByOwner(t *testing.T) {
	t.Parallel()

	admin := users.Principal{ID: "a-1", Role: enums.RoleAdmin}
	svc := &stubBookings{list: []bookings.Booking{{ID: "b-1", OwnerID: "u-7"}}}
	resp := httptest.NewRecorder()
	AdminBookingsList(svc, nil, nil).ServeHTTP(resp, asPrincipal(newJSONRequest(http.MethodGet, "/api/v1/admin/bookings?owner=u-7", ""), admin))

	if resp.Code != http.StatusOK || svc.gotOwner != "u-7" {
		t.Fatalf("expected owner filter, got %d owner=%q", resp.Code, svc.gotOwner)
	}
}

func TestAdminBookingsListPaginates(t *testing.T) {
	t.Parallel()

	admin := users.Principal{ID: "a-1", Role: enums.RoleAdmin}
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := &stubBookings{list: []bookings.Booking{
		{ID: "b-3", CreatedAt: base.Add(3 * time.Hour)},
		{ID: "b-2", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "b-1", CreatedAt: base.Add(time.Hour)},
	}}

	resp := httptest.NewRecorder()
	AdminBookingsList(svc, nil, nil).ServeHTTP(resp, asPrincipal(newJSONRequest(http.MethodGet, "/api/v1/admin/bookings?limit=2", ""), admin))
	first := decodeData[bookingListResponse](t, resp)
	if len(first.Bookings) != 2 || first.NextCursor == "" {
		t.Fatalf("unexpected first page %+v", first)
	}

	resp = httptest.NewRecorder()
	req := newJSONRequest(http.MethodGet, "/api/v1/admin/bookings?limit=2&cursor="+url.QueryEscape(first.NextCursor), "")
	AdminBookingsList(svc, nil, nil).ServeHTTP(resp, asPrincipal(req, admin))
	second := decodeData[bookingListResponse](t, resp)
	if len(second.Bookings) != 1 || second.Bookings[0].ID != "b-1" || second.NextCursor != "" {
		t.Fatalf("unexpected second page %+v", second)
	}

	resp = httptest.NewRecorder()
	AdminBookingsList(svc, nil, nil).ServeHTTP(resp, asPrincipal(newJSONRequest(http.MethodGet, "/api/v1/admin/bookings?cursor=%25%25", ""), admin))
	expectCode(t, resp, pkgerrors.CodeValidation)
}
