// Package session tracks who the storefront is acting for and owns the
// login, guest and logout flows.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/angelmondragon/petshop-storefront/internal/keys"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	guestIDPrefix             = "guest-"
	guestMarker               = "true"
)

// Authenticator is the remote identity boundary.
type Authenticator interface {
	LoginWithCredentials(ctx context.Context, email, password string) (users.Profile, error)
	RegisterWithCredentials(ctx context.Context, email, password, name, avatar string) (users.Profile, error)
	LoginWithFederatedProvider(ctx context.Context, idToken string) (users.Profile, error)
	LogoutRemote(ctx context.Context, principalID string) error
}

type principalStore interface {
	Get(ctx context.Context) (users.Principal, bool, error)
}

type ledger interface {
	Adopt(ctx context.Context, p users.Principal) error
}

// ServiceParams bundles the dependencies required to build a session service.
type ServiceParams struct {
	Auth          Authenticator
	Principals    principalStore
	Ledger        ledger
	Store         kvs.Store
	Publisher     broadcast.Publisher
	Logger        *logger.Logger
	StartingGrant int64
}

type Service struct {
	mu      sync.RWMutex
	current *users.Principal
	loading bool

	auth          Authenticator
	principals    principalStore
	ledger        ledger
	store         kvs.Store
	pub           broadcast.Publisher
	logg          *logger.Logger
	startingGrant int64
	newGuestID    func() string
}

// NewService constructs a session with no principal.
func NewService(params ServiceParams) (*Service, error) {
	if params.Auth == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authenticator is required")
	}
	if params.Principals == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "principal store is required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit ledger is required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kvs store is required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "publisher is required")
	}
	if params.StartingGrant < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "starting grant must not be negative")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		auth:          params.Auth,
		principals:    params.Principals,
		ledger:        params.Ledger,
		store:         params.Store,
		pub:           params.Publisher,
		logg:          logg,
		startingGrant: params.StartingGrant,
		newGuestID:    func() string { return guestIDPrefix + uuid.NewString() },
	}, nil
}

// Restore rehydrates the session from the KVS. Loading reports true while it
// runs.
func (s *Service) Restore(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	p, found, err := s.principals.Get(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore principal")
	}
	if found {
		s.setCurrent(&p)
		s.logg.Info(s.logg.WithPrincipalID(ctx, p.ID), "session restored")
		return nil
	}

	guest, err := s.restoreGuest(ctx)
	if err != nil {
		return err
	}
	s.setCurrent(guest)
	return nil
}

func (s *Service) restoreGuest(ctx context.Context) (*users.Principal, error) {
	marker, found, err := s.store.Get(ctx, keys.IsGuest)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read guest marker")
	}
	if !found || marker != guestMarker {
		return nil, nil
	}
	id, found, err := s.store.Get(ctx, keys.GuestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read guest id")
	}
	if !found || !strings.HasPrefix(id, guestIDPrefix) {
		s.logg.Warn(s.logg.WithKey(ctx, keys.GuestID), "guest marker without a usable guest id")
		return nil, nil
	}
	g := guestPrincipal(id)
	return &g, nil
}

// Current returns the acting principal. For signed-in customers the stored
// record is authoritative, so the balance reflects the latest ledger write.
func (s *Service) Current(ctx context.Context) (users.Principal, bool) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur == nil {
		return users.Principal{}, false
	}
	if cur.Guest {
		return *cur, true
	}

	stored, found, err := s.principals.Get(ctx)
	if err != nil {
		s.logg.Error(s.logg.WithPrincipalID(ctx, cur.ID), "reload principal", err)
		return *cur, true
	}
	if !found || stored.ID != cur.ID {
		return *cur, true
	}
	return stored, true
}

// IsAuthenticated is true for a signed-in, non-guest principal.
func (s *Service) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && !s.current.Guest
}

func (s *Service) IsGuest() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.current.Guest
}

func (s *Service) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && !s.current.Guest && s.current.IsAdmin()
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// State summarises the session for surfaces.
func (s *Service) State(ctx context.Context) State {
	st := State{Loading: s.Loading()}
	p, ok := s.Current(ctx)
	if !ok {
		return st
	}
	st.Authenticated = !p.Guest
	st.Guest = p.Guest
	st.Admin = !p.Guest && p.IsAdmin()
	st.PrincipalID = p.ID
	st.Name = p.Name
	st.Avatar = p.Avatar
	st.Role = p.Role.String()
	st.Credits = p.Credits
	return st
}

// LoginWithCredentials signs in with email and password.
func (s *Service) LoginWithCredentials(ctx context.Context, req LoginRequest) (users.Principal, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return users.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	profile, err := s.auth.LoginWithCredentials(ctx, email, req.Password)
	if err != nil {
		return users.Principal{}, remoteError(err, "login")
	}
	return s.adopt(ctx, profile)
}

// Register creates an account and signs in. New accounts start with the
// configured LuckCoins grant.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (users.Principal, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return users.Principal{}, pkgerrors.New(pkgerrors.CodeValidation, "email and name are required")
	}
	if len(req.Password) < 6 {
		return users.Principal{}, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 6 characters")
	}
	avatar := strings.TrimSpace(req.Avatar)
	if avatar == "" {
		avatar = users.DefaultAvatar
	}
	profile, err := s.auth.RegisterWithCredentials(ctx, email, req.Password, name, avatar)
	if err != nil {
		return users.Principal{}, remoteError(err, "register")
	}
	return s.adopt(ctx, profile)
}

// LoginWithFederated signs in with an identity provider token.
func (s *Service) LoginWithFederated(ctx context.Context, req FederatedLoginRequest) (users.Principal, error) {
	token := strings.TrimSpace(req.IDToken)
	if token == "" {
		return users.Principal{}, pkgerrors.New(pkgerrors.CodeValidation, "id token is required")
	}
	profile, err := s.auth.LoginWithFederatedProvider(ctx, token)
	if err != nil {
		return users.Principal{}, remoteError(err, "federated login")
	}
	return s.adopt(ctx, profile)
}

// ContinueAsGuest starts an anonymous session. Guests have no record under
// "user" and no LuckCoins.
func (s *Service) ContinueAsGuest(ctx context.Context) (users.Principal, error) {
	if s.IsAuthenticated() {
		return users.Principal{}, pkgerrors.New(pkgerrors.CodeConflict, "already signed in")
	}
	if s.IsGuest() {
		p, _ := s.Current(ctx)
		return p, nil
	}

	id := s.newGuestID()
	if err := s.store.Set(ctx, keys.GuestID, id); err != nil {
		return users.Principal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save guest id")
	}
	if err := s.store.Set(ctx, keys.IsGuest, guestMarker); err != nil {
		if delErr := s.store.Delete(ctx, keys.GuestID); delErr != nil {
			s.logg.Error(s.logg.WithKey(ctx, keys.GuestID), "roll back guest id", delErr)
		}
		return users.Principal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save guest marker")
	}

	g := guestPrincipal(id)
	s.setCurrent(&g)

	s.pub.Publish(ctx, broadcast.KeysChanged(keys.IsGuest, keys.GuestID))
	s.pub.Publish(ctx, broadcast.AuthChanged{PrincipalID: g.ID, Role: g.Role, Guest: true})
	s.logg.Info(s.logg.WithPrincipalID(ctx, g.ID), "guest session started")
	return g, nil
}

// Logout ends the session. Remote invalidation is best effort; every
// session key is deleted even when some deletions fail. logged-out
// subscribers still see the departing principal; the session is cleared
// right after delivery.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()

	if cur != nil {
		ctx = s.logg.WithPrincipalID(ctx, cur.ID)
		if !cur.Guest {
			if err := s.auth.LogoutRemote(ctx, cur.ID); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "remote logout failed")
			}
		}
	}

	var errs error
	for _, key := range keys.SessionScoped() {
		if err := s.store.Delete(ctx, key); err != nil {
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete "+key))
		}
	}

	s.pub.Publish(ctx, broadcast.LoggedOut{})
	s.setCurrent(nil)

	if errs != nil {
		s.logg.Error(ctx, "logout left session keys behind", errs)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "clear session")
	}
	s.logg.Info(ctx, "signed out")
	return nil
}

// adopt normalizes the remote profile, persists it through the ledger and
// announces the new identity.
func (s *Service) adopt(ctx context.Context, profile users.Profile) (users.Principal, error) {
	if strings.TrimSpace(profile.ID) == "" {
		return users.Principal{}, pkgerrors.New(pkgerrors.CodeDependency, "identity provider returned no user id")
	}
	p := users.Normalize(profile, s.startingGrant)
	ctx = s.logg.WithPrincipalID(ctx, p.ID)

	if err := s.ledger.Adopt(ctx, p); err != nil {
		return users.Principal{}, err
	}
	if err := s.store.Delete(ctx, keys.IsGuest, keys.GuestID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "clear guest markers")
	}

	s.setCurrent(&p)
	s.pub.Publish(ctx, broadcast.AuthChanged{PrincipalID: p.ID, Role: p.Role, Guest: false})
	s.logg.Info(ctx, "signed in")
	return p, nil
}

func (s *Service) setCurrent(p *users.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		s.current = nil
		return
	}
	cp := *p
	s.current = &cp
}

func (s *Service) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func guestPrincipal(id string) users.Principal {
	return users.Principal{
		ID:     id,
		Name:   "Guest",
		Avatar: users.DefaultAvatar,
		Role:   enums.RoleUser,
		Guest:  true,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func remoteError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
