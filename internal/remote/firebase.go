package remote

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/petshop-storefront/internal/bookings"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/config"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/identity"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

type authClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

type passwordSignIn interface {
	SignInWithPassword(ctx context.Context, email, password string) (identity.SignInResult, error)
}

// FirebaseBackend talks to Firebase Auth and Firestore.
type FirebaseBackend struct {
	auth     authClient
	signIn   passwordSignIn
	fs       *firestore.Client
	users    string
	bookings string
	timeout  time.Duration
	logg     *logger.Logger
}

// NewFirebaseBackend initializes the Firebase app, its auth client and a
// Firestore client. An empty credentials file falls back to Application
// Default Credentials.
func NewFirebaseBackend(ctx context.Context, cfg config.FirebaseConfig, logg *logger.Logger) (*FirebaseBackend, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if credFile := strings.TrimSpace(cfg.CredentialsFile); credFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "init firebase app")
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "init firebase auth")
	}
	fs, err := firestore.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "init firestore")
	}
	signIn, err := identity.NewClient(cfg.WebAPIKey, identity.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		_ = fs.Close()
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "init identity toolkit client")
	}

	logg.Info(logg.WithField(ctx, "project_id", projectID), "firebase backend ready")
	return &FirebaseBackend{
		auth:     authClient,
		signIn:   signIn,
		fs:       fs,
		users:    cfg.UsersCollection,
		bookings: cfg.Bookings,
		timeout:  cfg.RequestTimeout,
		logg:     logg,
	}, nil
}

func (b *FirebaseBackend) usersCol() *firestore.CollectionRef {
	return b.fs.Collection(b.users)
}

func (b *FirebaseBackend) bookingsCol() *firestore.CollectionRef {
	return b.fs.Collection(b.bookings)
}

// LoginWithCredentials verifies the password and loads the profile document.
func (b *FirebaseBackend) LoginWithCredentials(ctx context.Context, email, password string) (users.Profile, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	account, err := b.signIn.SignInWithPassword(ctx, email, password)
	if err != nil {
		return users.Profile{}, err
	}
	return b.loadOrCreateProfile(ctx, users.Profile{
		ID:    account.UID,
		Name:  account.DisplayName,
		Email: account.Email,
	})
}

// RegisterWithCredentials creates the auth account and its profile document.
// Credits are left unset so the session applies the starting grant and the
// ledger mirrors it back.
func (b *FirebaseBackend) RegisterWithCredentials(ctx context.Context, email, password, name, avatar string) (users.Profile, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	params := (&auth.UserToCreate{}).Email(email).Password(password).DisplayName(name)
	record, err := b.auth.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return users.Profile{}, pkgerrors.New(pkgerrors.CodeConflict, "an account with this email already exists")
		}
		return users.Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create auth user")
	}

	doc := userDoc{
		Name:      name,
		Email:     email,
		Avatar:    avatar,
		Role:      enums.RoleUser.String(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := b.usersCol().Doc(record.UID).Set(ctx, doc); err != nil {
		return users.Profile{}, firestoreError(err, "create profile")
	}
	return doc.profile(record.UID), nil
}

// LoginWithFederatedProvider verifies an ID token minted by a federated
// sign-in on the client.
func (b *FirebaseBackend) LoginWithFederatedProvider(ctx context.Context, idToken string) (users.Profile, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	token, err := b.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		if auth.IsIDTokenExpired(err) || auth.IsIDTokenInvalid(err) {
			return users.Profile{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid identity token")
		}
		return users.Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify identity token")
	}

	seed := users.Profile{ID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		seed.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		seed.Name = name
	}
	return b.loadOrCreateProfile(ctx, seed)
}

// LogoutRemote revokes the principal's refresh tokens.
func (b *FirebaseBackend) LogoutRemote(ctx context.Context, principalID string) error {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.auth.RevokeRefreshTokens(ctx, principalID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke refresh tokens")
	}
	return nil
}

// SaveCredits mirrors the balance into the profile document.
func (b *FirebaseBackend) SaveCredits(ctx context.Context, principalID string, balance int64) error {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	_, err := b.usersCol().Doc(principalID).Set(ctx, map[string]any{
		"credits":   balance,
		"updatedAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return firestoreError(err, "save credits")
	}
	return nil
}

func (b *FirebaseBackend) FetchBookingsForOwner(ctx context.Context, ownerID string) ([]bookings.Booking, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.collect(ctx, b.bookingsCol().Where("ownerId", "==", ownerID).Documents(ctx))
}

func (b *FirebaseBackend) FetchAllBookings(ctx context.Context) ([]bookings.Booking, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.collect(ctx, b.bookingsCol().Documents(ctx))
}

func (b *FirebaseBackend) FetchBooking(ctx context.Context, id string) (bookings.Booking, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	snap, err := b.bookingsCol().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return bookings.Booking{}, bookingNotFound()
		}
		return bookings.Booking{}, firestoreError(err, "load booking")
	}
	var doc bookingDoc
	if err := snap.DataTo(&doc); err != nil {
		return bookings.Booking{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode booking")
	}
	booking, err := doc.booking(snap.Ref.ID)
	if err != nil {
		return bookings.Booking{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode booking")
	}
	return booking, nil
}

func (b *FirebaseBackend) CreateBookingRemote(ctx context.Context, booking bookings.Booking) error {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	if _, err := b.bookingsCol().Doc(booking.ID).Create(ctx, bookingToDoc(booking)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return pkgerrors.New(pkgerrors.CodeConflict, "booking already exists")
		}
		return firestoreError(err, "create booking")
	}
	return nil
}

func (b *FirebaseBackend) CancelBookingRemote(ctx context.Context, id string) error {
	return b.SetBookingStatusRemote(ctx, id, enums.BookingStatusCancelled)
}

func (b *FirebaseBackend) SetBookingPaymentStatusRemote(ctx context.Context, id string, paymentStatus enums.PaymentStatus) error {
	return b.update(ctx, id, "paymentStatus", paymentStatus.String())
}

func (b *FirebaseBackend) SetBookingStatusRemote(ctx context.Context, id string, bookingStatus enums.BookingStatus) error {
	return b.update(ctx, id, "status", bookingStatus.String())
}

// Close releases the Firestore client.
func (b *FirebaseBackend) Close() error {
	if b == nil || b.fs == nil {
		return nil
	}
	return b.fs.Close()
}

func (b *FirebaseBackend) update(ctx context.Context, id, path string, value any) error {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	_, err := b.bookingsCol().Doc(id).Update(ctx, []firestore.Update{
		{Path: path, Value: value},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return bookingNotFound()
		}
		return firestoreError(err, "update booking")
	}
	return nil
}

// collect drains it. Documents that no longer decode are skipped and logged.
func (b *FirebaseBackend) collect(ctx context.Context, it *firestore.DocumentIterator) ([]bookings.Booking, error) {
	defer it.Stop()

	out := []bookings.Booking{}
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, firestoreError(err, "list bookings")
		}
		var doc bookingDoc
		if err := snap.DataTo(&doc); err != nil {
			b.logg.Warn(b.logg.WithFields(ctx, map[string]any{"booking_id": snap.Ref.ID, "error": err.Error()}), "skipping undecodable booking")
			continue
		}
		booking, err := doc.booking(snap.Ref.ID)
		if err != nil {
			b.logg.Warn(b.logg.WithFields(ctx, map[string]any{"booking_id": snap.Ref.ID, "error": err.Error()}), "skipping invalid booking")
			continue
		}
		out = append(out, booking)
	}
	return out, nil
}

// loadOrCreateProfile reads users/{uid}, creating it from seed on first
// sign-in.
func (b *FirebaseBackend) loadOrCreateProfile(ctx context.Context, seed users.Profile) (users.Profile, error) {
	ref := b.usersCol().Doc(seed.ID)
	snap, err := ref.Get(ctx)
	if err == nil {
		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return users.Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode profile")
		}
		profile := doc.profile(seed.ID)
		if profile.Email == "" {
			profile.Email = seed.Email
		}
		if profile.Name == "" {
			profile.Name = seed.Name
		}
		return profile, nil
	}
	if status.Code(err) != codes.NotFound {
		return users.Profile{}, firestoreError(err, "load profile")
	}

	doc := userDoc{
		Name:      seed.Name,
		Email:     seed.Email,
		Avatar:    users.DefaultAvatar,
		Role:      enums.RoleUser.String(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		return users.Profile{}, firestoreError(err, "create profile")
	}
	return doc.profile(seed.ID), nil
}

func firestoreError(err error, msg string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msg)
	case codes.PermissionDenied:
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, err, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
