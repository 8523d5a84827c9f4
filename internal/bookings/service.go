// Package bookings owns the service-booking lifecycle: creation, owner and
// admin transitions, and the owner's cached listing.
package bookings

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/petshop-storefront/internal/catalog"
	"github.com/angelmondragon/petshop-storefront/internal/keys"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
	"github.com/google/uuid"
)

// Remote is the booking document store.
type Remote interface {
	FetchBookingsForOwner(ctx context.Context, ownerID string) ([]Booking, error)
	FetchAllBookings(ctx context.Context) ([]Booking, error)
	FetchBooking(ctx context.Context, id string) (Booking, error)
	CreateBookingRemote(ctx context.Context, b Booking) error
	CancelBookingRemote(ctx context.Context, id string) error
	SetBookingPaymentStatusRemote(ctx context.Context, id string, status enums.PaymentStatus) error
	SetBookingStatusRemote(ctx context.Context, id string, status enums.BookingStatus) error
}

// Credits is the slice of the LuckCoins ledger bookings need.
type Credits interface {
	Balance(ctx context.Context) (int64, error)
	Grant(ctx context.Context, amount int64) (int64, error)
	Deduct(ctx context.Context, amount int64) (bool, error)
}

// Services resolves bookable services.
type Services interface {
	Service(id string) (catalog.Service, bool)
}

// ServiceParams groups dependencies for the booking service.
type ServiceParams struct {
	Remote    Remote
	Credits   Credits
	Services  Services
	Store     kvs.Store
	Publisher broadcast.Publisher
	Logger    *logger.Logger

	// RefundCreditsOnCancel returns the LuckCoins of a cancelled credits booking.
	RefundCreditsOnCancel bool
}

type Service struct {
	remote   Remote
	credits  Credits
	services Services
	cache    cache
	store    kvs.Store
	pub      broadcast.Publisher
	logg     *logger.Logger
	refund   bool
	now      func() time.Time
	newID    func() string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote booking store is required")
	}
	if params.Credits == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit ledger is required")
	}
	if params.Services == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "service catalog is required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kvs store is required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "publisher is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		remote:   params.Remote,
		credits:  params.Credits,
		services: params.Services,
		cache:    cache{store: params.Store, logg: logg},
		store:    params.Store,
		pub:      params.Publisher,
		logg:     logg,
		refund:   params.RefundCreditsOnCancel,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}, nil
}

// Create books a service for actor. LuckCoins bookings are paid on the spot:
// the credits are deducted before the remote write and returned if it fails.
func (s *Service) Create(ctx context.Context, actor users.Principal, in CreateInput) (Booking, error) {
	if err := requireCustomer(actor); err != nil {
		return Booking{}, err
	}

	now := s.now()
	if fieldErrs := in.validate(now); len(fieldErrs) > 0 {
		return Booking{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid booking").WithDetails(fieldErrs)
	}
	svc, ok := s.services.Service(strings.TrimSpace(in.ServiceID))
	if !ok {
		return Booking{}, pkgerrors.New(pkgerrors.CodeNotFound, "service not found")
	}
	professional := strings.TrimSpace(in.Professional)
	if professional != "" && !svc.HasProfessional(professional) {
		return Booking{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid booking").
			WithDetails([]FieldError{{Field: "professional", Message: "does not offer this service"}})
	}

	b := Booking{
		ID:            s.newID(),
		OwnerID:       actor.ID,
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		Date:          in.Date,
		Time:          in.Time,
		PetName:       strings.TrimSpace(in.PetName),
		PetSpecies:    strings.TrimSpace(in.PetSpecies),
		PetAge:        in.PetAge,
		Professional:  professional,
		Price:         svc.Price.Round(2),
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: enums.PaymentStatusPending,
		Status:        enums.BookingStatusPending,
		Notes:         strings.TrimSpace(in.Notes),
		CreatedAt:     now.UTC(),
	}

	ctx = s.logg.WithFields(s.logg.WithPrincipalID(ctx, actor.ID), map[string]any{
		"booking_id": b.ID,
		"service_id": b.ServiceID,
		"method":     b.PaymentMethod.String(),
	})

	var charged int64
	if b.PaymentMethod.UsesCredits() {
		cost := b.CreditCost()
		if cost > 0 {
			ok, err := s.credits.Deduct(ctx, cost)
			if err != nil {
				return Booking{}, err
			}
			if !ok {
				balance, _ := s.credits.Balance(ctx)
				return Booking{}, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "not enough LuckCoins for this booking").
					WithDetails(map[string]int64{"required": cost, "balance": balance})
			}
			charged = cost
		}
		b.PaymentStatus = enums.PaymentStatusPaid
	}

	if err := s.remote.CreateBookingRemote(ctx, b); err != nil {
		if charged > 0 {
			if _, grantErr := s.credits.Grant(ctx, charged); grantErr != nil {
				s.logg.Error(ctx, "return credits after failed booking", grantErr)
			}
		}
		return Booking{}, remoteError(err, "create booking")
	}

	changed := []string{keys.BookingDraft}
	if cached, err := s.cache.upsert(ctx, b, now); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "update bookings cache")
	} else if cached {
		changed = append(changed, keys.BookingsCache)
	}
	if err := s.store.Delete(ctx, keys.BookingDraft); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "clear booking draft")
	}
	s.publishStorage(ctx, changed...)

	s.logg.Info(ctx, "booking created")
	return b, nil
}

// Cancel moves the actor's pending booking to cancelled.
func (s *Service) Cancel(ctx context.Context, actor users.Principal, bookingID string) (Booking, error) {
	b, err := s.loadOwned(ctx, actor, bookingID, false)
	if err != nil {
		return Booking{}, err
	}
	if !b.Status.CanTransitionTo(enums.BookingStatusCancelled) {
		return Booking{}, stateConflict(b, "only pending bookings can be cancelled")
	}

	if err := s.remote.CancelBookingRemote(ctx, b.ID); err != nil {
		return Booking{}, remoteError(err, "cancel booking")
	}
	b.Status = enums.BookingStatusCancelled

	if s.refund && b.PaymentMethod.UsesCredits() {
		if cost := b.CreditCost(); cost > 0 {
			if _, err := s.credits.Grant(ctx, cost); err != nil {
				s.logg.Error(s.logg.WithField(ctx, "booking_id", b.ID), "refund cancelled booking", err)
			}
		}
	}

	s.afterChange(ctx, b)
	return b, nil
}

// MarkPaid records payment of an unpaid, non-credits booking that is not
// cancelled. Paying an already paid booking is a no-op.
func (s *Service) MarkPaid(ctx context.Context, actor users.Principal, bookingID string) (Booking, error) {
	b, err := s.loadOwned(ctx, actor, bookingID, true)
	if err != nil {
		return Booking{}, err
	}
	if b.PaymentMethod.UsesCredits() {
		return Booking{}, stateConflict(b, "LuckCoins bookings are paid at creation")
	}
	if b.PaymentStatus == enums.PaymentStatusPaid {
		return b, nil
	}
	if b.Status == enums.BookingStatusCancelled {
		return Booking{}, stateConflict(b, "cancelled bookings cannot be marked paid")
	}

	if err := s.remote.SetBookingPaymentStatusRemote(ctx, b.ID, enums.PaymentStatusPaid); err != nil {
		return Booking{}, remoteError(err, "update payment status")
	}
	b.PaymentStatus = enums.PaymentStatusPaid

	s.afterChange(ctx, b)
	return b, nil
}

// Confirm accepts a pending booking. Admin only.
func (s *Service) Confirm(ctx context.Context, actor users.Principal, bookingID string) (Booking, error) {
	return s.adminTransition(ctx, actor, bookingID, enums.BookingStatusConfirmed)
}

// Complete closes a pending or confirmed booking. Admin only.
func (s *Service) Complete(ctx context.Context, actor users.Principal, bookingID string) (Booking, error) {
	return s.adminTransition(ctx, actor, bookingID, enums.BookingStatusCompleted)
}

// ListByOwner returns ownerID's bookings, newest first. Listing one's own
// bookings refreshes the bookings cache.
func (s *Service) ListByOwner(ctx context.Context, actor users.Principal, ownerID string) ([]Booking, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	if ownerID == "" {
		ownerID = actor.ID
	}
	if ownerID != actor.ID && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "bookings belong to another customer")
	}

	list, err := s.remote.FetchBookingsForOwner(ctx, ownerID)
	if err != nil {
		return nil, remoteError(err, "fetch bookings")
	}
	list = ownedBy(list, ownerID)
	sortNewestFirst(list)

	if ownerID == actor.ID {
		if err := s.cache.put(ctx, ownerID, list, s.now()); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "write bookings cache")
		} else {
			s.publishStorage(ctx, keys.BookingsCache)
		}
	}
	return list, nil
}

// ListAll returns every booking, newest first. Admin only.
func (s *Service) ListAll(ctx context.Context, actor users.Principal) ([]Booking, error) {
	if !actor.IsAdmin() || actor.Guest {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	list, err := s.remote.FetchAllBookings(ctx)
	if err != nil {
		return nil, remoteError(err, "fetch bookings")
	}
	sortNewestFirst(list)
	return list, nil
}

// Cached returns the actor's last fetched bookings without a remote call.
func (s *Service) Cached(ctx context.Context, actor users.Principal) ([]Booking, bool) {
	return s.cache.get(ctx, actor.ID)
}

// RequestBooking stores a draft for serviceID and asks surfaces to open the
// booking panel.
func (s *Service) RequestBooking(ctx context.Context, serviceID string) (Draft, error) {
	svc, ok := s.services.Service(strings.TrimSpace(serviceID))
	if !ok {
		return Draft{}, pkgerrors.New(pkgerrors.CodeNotFound, "service not found")
	}
	d := Draft{ServiceID: svc.ID, RequestedAt: s.now().UTC()}
	if err := kvs.SetJSON(ctx, s.store, keys.BookingDraft, d); err != nil {
		return Draft{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save booking draft")
	}
	s.publishStorage(ctx, keys.BookingDraft)
	s.pub.Publish(ctx, broadcast.OpenBookingPanel{ServiceID: svc.ID})
	return d, nil
}

// CurrentDraft returns the pending booking draft, if any.
func (s *Service) CurrentDraft(ctx context.Context) (Draft, bool) {
	return s.cache.draft(ctx)
}

func (s *Service) adminTransition(ctx context.Context, actor users.Principal, bookingID string, next enums.BookingStatus) (Booking, error) {
	if !actor.IsAdmin() || actor.Guest {
		return Booking{}, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	b, err := s.load(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if !b.Status.CanTransitionTo(next) {
		return Booking{}, stateConflict(b, "cannot move booking from "+b.Status.String()+" to "+next.String())
	}
	if err := s.remote.SetBookingStatusRemote(ctx, b.ID, next); err != nil {
		return Booking{}, remoteError(err, "update booking status")
	}
	b.Status = next
	s.afterChange(ctx, b)
	return b, nil
}

// loadOwned fetches the booking and checks ownership. allowAdmin lets admins
// act on bookings they do not own.
func (s *Service) loadOwned(ctx context.Context, actor users.Principal, bookingID string, allowAdmin bool) (Booking, error) {
	if err := requireCustomer(actor); err != nil {
		return Booking{}, err
	}
	b, err := s.load(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if b.OwnerID != actor.ID && !(allowAdmin && actor.IsAdmin()) {
		return Booking{}, pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another customer")
	}
	return b, nil
}

func (s *Service) load(ctx context.Context, bookingID string) (Booking, error) {
	id := strings.TrimSpace(bookingID)
	if id == "" {
		return Booking{}, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	b, err := s.remote.FetchBooking(ctx, id)
	if err != nil {
		return Booking{}, remoteError(err, "load booking")
	}
	return b, nil
}

func (s *Service) afterChange(ctx context.Context, b Booking) {
	cached, err := s.cache.upsert(ctx, b, s.now())
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "update bookings cache")
		return
	}
	if cached {
		s.publishStorage(ctx, keys.BookingsCache)
	}
}

// publishStorage announces every key of one mutation as a single event.
func (s *Service) publishStorage(ctx context.Context, changed ...string) {
	if len(changed) == 0 {
		return
	}
	s.pub.Publish(ctx, broadcast.KeysChanged(changed...))
}

func requireCustomer(actor users.Principal) error {
	if actor.ID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to manage bookings")
	}
	if actor.Guest {
		return pkgerrors.New(pkgerrors.CodeForbidden, "guests cannot book services")
	}
	return nil
}

func stateConflict(b Booking, msg string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).WithDetails(map[string]string{
		"bookingId":     b.ID,
		"status":        b.Status.String(),
		"paymentStatus": b.PaymentStatus.String(),
	})
}

// remoteError keeps typed remote failures and treats the rest as an
// unavailable dependency.
func remoteError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func ownedBy(list []Booking, ownerID string) []Booking {
	out := make([]Booking, 0, len(list))
	for _, b := range list {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out
}

func sortNewestFirst(list []Booking) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
