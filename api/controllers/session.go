package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/api/validators"
	"github.com/angelmondragon/petshop-storefront/internal/session"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

type sessionState interface {
	State(ctx context.Context) session.State
}

type credentialLogin interface {
	sessionState
	LoginWithCredentials(ctx context.Context, req session.LoginRequest) (users.Principal, error)
}

type registrar interface {
	sessionState
	Register(ctx context.Context, req session.RegisterRequest) (users.Principal, error)
}

type federatedLogin interface {
	sessionState
	LoginWithFederated(ctx context.Context, req session.FederatedLoginRequest) (users.Principal, error)
}

type guestStarter interface {
	sessionState
	ContinueAsGuest(ctx context.Context) (users.Principal, error)
}

type sessionCloser interface {
	sessionState
	Logout(ctx context.Context) error
}

// SessionState returns the current session.
func SessionState(svc sessionState, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "session service")
			return
		}
		responses.WriteSuccess(w, svc.State(r.Context()))
	}
}

// SessionLogin signs in with email and password.
func SessionLogin(svc credentialLogin, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "session service")
			return
		}
		var req session.LoginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		if _, err := svc.LoginWithCredentials(r.Context(), req); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, svc.State(r.Context()))
	}
}

// SessionRegister creates a customer account and signs it in.
func SessionRegister(svc registrar, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "session service")
			return
		}
		var req session.RegisterRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		if _, err := svc.Register(r.Context(), req); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, svc.State(r.Context()))
	}
}

// SessionFederatedLogin signs in with an identity provider token.
func SessionFederatedLogin(svc federatedLogin, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "session service")
			return
		}
		var req session.FederatedLoginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		if _, err := svc.LoginWithFederated(r.Context(), req); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, svc.State(r.Context()))
	}
}

// SessionGuest continues without an account.
func SessionGuest(svc guestStarter, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "session service")
			return
		}
		if _, err := svc.ContinueAsGuest(r.Context()); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, svc.State(r.Context()))
	}
}

// SessionLogout ends the session and wipes session-scoped state.
func SessionLogout(svc sessionCloser, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "session service")
			return
		}
		if err := svc.Logout(r.Context()); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, svc.State(r.Context()))
	}
}
