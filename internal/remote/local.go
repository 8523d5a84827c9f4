package remote

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/petshop-storefront/internal/bookings"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
	"github.com/angelmondragon/petshop-storefront/pkg/security"
	"github.com/google/uuid"
)

const invalidCredentialsMessage = "invalid credentials"

type localAccount struct {
	profile      userDoc
	uid          string
	passwordHash string
}

// LocalBackend keeps accounts and bookings in memory. It backs development
// runs and tests when Firebase is disabled; nothing survives a restart.
type LocalBackend struct {
	mu       sync.RWMutex
	hasher   *security.Hasher
	accounts map[string]*localAccount // keyed by lower-cased email
	byUID    map[string]*localAccount
	bookings map[string]bookings.Booking
	revoked  map[string]time.Time
	logg     *logger.Logger
}

func NewLocalBackend(hasher *security.Hasher, logg *logger.Logger) (*LocalBackend, error) {
	if hasher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password hasher is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &LocalBackend{
		hasher:   hasher,
		accounts: map[string]*localAccount{},
		byUID:    map[string]*localAccount{},
		bookings: map[string]bookings.Booking{},
		revoked:  map[string]time.Time{},
		logg:     logg,
	}, nil
}

// SeedAdmin creates an admin account unless the email is already taken.
func (l *LocalBackend) SeedAdmin(ctx context.Context, email, password, name string) (users.Profile, error) {
	return l.create(ctx, email, password, name, users.DefaultAvatar, enums.RoleAdmin)
}

func (l *LocalBackend) LoginWithCredentials(_ context.Context, email, password string) (users.Profile, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	l.mu.RLock()
	acct, ok := l.accounts[key]
	l.mu.RUnlock()
	if !ok {
		return users.Profile{}, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	valid, err := l.hasher.Verify(password, acct.passwordHash)
	if err != nil {
		return users.Profile{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return users.Profile{}, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return acct.profile.profile(acct.uid), nil
}

func (l *LocalBackend) RegisterWithCredentials(ctx context.Context, email, password, name, avatar string) (users.Profile, error) {
	return l.create(ctx, email, password, name, avatar, enums.RoleUser)
}

// LoginWithFederatedProvider is unavailable without an identity provider.
func (l *LocalBackend) LoginWithFederatedProvider(context.Context, string) (users.Profile, error) {
	return users.Profile{}, pkgerrors.New(pkgerrors.CodeForbidden, "federated sign-in is not configured")
}

func (l *LocalBackend) LogoutRemote(_ context.Context, principalID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[principalID] = time.Now().UTC()
	return nil
}

func (l *LocalBackend) SaveCredits(_ context.Context, principalID string, balance int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.byUID[principalID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	b := balance
	acct.profile.Credits = &b
	return nil
}

func (l *LocalBackend) FetchBookingsForOwner(_ context.Context, ownerID string) ([]bookings.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []bookings.Booking{}
	for _, b := range l.bookings {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (l *LocalBackend) FetchAllBookings(context.Context) ([]bookings.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]bookings.Booking, 0, len(l.bookings))
	for _, b := range l.bookings {
		out = append(out, b)
	}
	return out, nil
}

func (l *LocalBackend) FetchBooking(_ context.Context, id string) (bookings.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.bookings[id]
	if !ok {
		return bookings.Booking{}, bookingNotFound()
	}
	return b, nil
}

func (l *LocalBackend) CreateBookingRemote(_ context.Context, b bookings.Booking) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.bookings[b.ID]; exists {
		return pkgerrors.New(pkgerrors.CodeConflict, "booking already exists")
	}
	l.bookings[b.ID] = b
	return nil
}

func (l *LocalBackend) CancelBookingRemote(ctx context.Context, id string) error {
	return l.SetBookingStatusRemote(ctx, id, enums.BookingStatusCancelled)
}

func (l *LocalBackend) SetBookingPaymentStatusRemote(_ context.Context, id string, status enums.PaymentStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok {
		return bookingNotFound()
	}
	b.PaymentStatus = status
	l.bookings[id] = b
	return nil
}

func (l *LocalBackend) SetBookingStatusRemote(_ context.Context, id string, status enums.BookingStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok {
		return bookingNotFound()
	}
	b.Status = status
	l.bookings[id] = b
	return nil
}

func (l *LocalBackend) Close() error { return nil }

func (l *LocalBackend) create(ctx context.Context, email, password, name, avatar string, role enums.Role) (users.Profile, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" || password == "" {
		return users.Profile{}, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}
	hash, err := l.hasher.Hash(password)
	if err != nil {
		return users.Profile{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[key]; exists {
		return users.Profile{}, pkgerrors.New(pkgerrors.CodeConflict, "an account with this email already exists")
	}
	acct := &localAccount{
		uid: uuid.NewString(),
		profile: userDoc{
			Name:      strings.TrimSpace(name),
			Email:     key,
			Avatar:    avatar,
			Role:      role.String(),
			CreatedAt: time.Now().UTC(),
		},
		passwordHash: hash,
	}
	l.accounts[key] = acct
	l.byUID[acct.uid] = acct

	l.logg.Info(l.logg.WithFields(ctx, map[string]any{"principal_id": acct.uid, "role": role.String()}), "local account created")
	return acct.profile.profile(acct.uid), nil
}
