package remote

import (
	"context"
	"time"

	"github.com/angelmondragon/petshop-storefront/internal/bookings"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
	"github.com/angelmondragon/petshop-storefront/pkg/metrics"
)

// Instrumented records latency and outcome of every call to next.
type Instrumented struct {
	next    Backend
	metrics *metrics.Storefront
	logg    *logger.Logger
	now     func() time.Time
}

func NewInstrumented(next Backend, m *metrics.Storefront, logg *logger.Logger) *Instrumented {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Instrumented{next: next, metrics: m, logg: logg, now: time.Now}
}

func (i *Instrumented) observe(ctx context.Context, op string, start time.Time, err error) {
	elapsed := i.now().Sub(start)
	i.metrics.ObserveRemote(op, err, elapsed)
	fields := map[string]any{"remote_op": op, "duration_ms": elapsed.Milliseconds()}
	if err != nil {
		fields["error"] = err.Error()
		fields["error_code"] = pkgerrors.CodeOf(err)
		i.logg.Warn(i.logg.WithFields(ctx, fields), "remote call failed")
		return
	}
	i.logg.Debug(i.logg.WithFields(ctx, fields), "remote call")
}

func (i *Instrumented) LoginWithCredentials(ctx context.Context, email, password string) (p users.Profile, err error) {
	defer func(start time.Time) { i.observe(ctx, "login", start, err) }(i.now())
	return i.next.LoginWithCredentials(ctx, email, password)
}

func (i *Instrumented) RegisterWithCredentials(ctx context.Context, email, password, name, avatar string) (p users.Profile, err error) {
	defer func(start time.Time) { i.observe(ctx, "register", start, err) }(i.now())
	return i.next.RegisterWithCredentials(ctx, email, password, name, avatar)
}

func (i *Instrumented) LoginWithFederatedProvider(ctx context.Context, idToken string) (p users.Profile, err error) {
	defer func(start time.Time) { i.observe(ctx, "federated_login", start, err) }(i.now())
	return i.next.LoginWithFederatedProvider(ctx, idToken)
}

func (i *Instrumented) LogoutRemote(ctx context.Context, principalID string) (err error) {
	defer func(start time.Time) { i.observe(ctx, "logout", start, err) }(i.now())
	return i.next.LogoutRemote(ctx, principalID)
}

func (i *Instrumented) SaveCredits(ctx context.Context, principalID string, balance int64) (err error) {
	defer func(start time.Time) { i.observe(ctx, "save_credits", start, err) }(i.now())
	return i.next.SaveCredits(ctx, principalID, balance)
}

func (i *Instrumented) FetchBookingsForOwner(ctx context.Context, ownerID string) (out []bookings.Booking, err error) {
	defer func(start time.Time) { i.observe(ctx, "fetch_bookings_for_owner", start, err) }(i.now())
	return i.next.FetchBookingsForOwner(ctx, ownerID)
}

func (i *Instrumented) FetchAllBookings(ctx context.Context) (out []bookings.Booking, err error) {
	defer func(start time.Time) { i.observe(ctx, "fetch_all_bookings", start, err) }(i.now())
	return i.next.FetchAllBookings(ctx)
}

func (i *Instrumented) FetchBooking(ctx context.Context, id string) (b bookings.Booking, err error) {
	defer func(start time.Time) { i.observe(ctx, "fetch_booking", start, err) }(i.now())
	return i.next.FetchBooking(ctx, id)
}

func (i *Instrumented) CreateBookingRemote(ctx context.Context, b bookings.Booking) (err error) {
	defer func(start time.Time) { i.observe(ctx, "create_booking", start, err) }(i.now())
	return i.next.CreateBookingRemote(ctx, b)
}

func (i *Instrumented) CancelBookingRemote(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { i.observe(ctx, "cancel_booking", start, err) }(i.now())
	return i.next.CancelBookingRemote(ctx, id)
}

func (i *Instrumented) SetBookingPaymentStatusRemote(ctx context.Context, id string, status enums.PaymentStatus) (err error) {
	defer func(start time.Time) { i.observe(ctx, "set_payment_status", start, err) }(i.now())
	return i.next.SetBookingPaymentStatusRemote(ctx, id, status)
}

func (i *Instrumented) SetBookingStatusRemote(ctx context.Context, id string, status enums.BookingStatus) (err error) {
	defer func(start time.Time) { i.observe(ctx, "set_booking_status", start, err) }(i.now())
	return i.next.SetBookingStatusRemote(ctx, id, status)
}

func (i *Instrumented) Close() error {
	return i.next.Close()
}
