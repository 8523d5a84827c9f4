package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
)

type stubPrincipalSource struct {
	principal users.Principal
	ok        bool
}

func (s stubPrincipalSource) Current(context.Context) (users.Principal, bool) {
	return s.principal, s.ok
}

func okHandler(captured *users.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured, _ = PrincipalFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestSessionAttachesPrincipal(t *testing.T) {
	t.Parallel()

	var captured users.Principal
	src := stubPrincipalSource{principal: users.Principal{ID: "u-1", Role: enums.RoleUser}, ok: true}
	resp := serve(Session(src, nil)(okHandler(&captured)))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.ID != "u-1" {
		t.Fatalf("expected principal u-1, got %q", captured.ID)
	}
}

func TestRequireAuthenticated(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		src    stubPrincipalSource
		status int
	}{
		{name: "anonymous", src: stubPrincipalSource{}, status: http.StatusUnauthorized},
		{name: "guest", src: stubPrincipalSource{principal: users.Principal{ID: "guest-1", Guest: true}, ok: true}, status: http.StatusForbidden},
		{name: "customer", src: stubPrincipalSource{principal: users.Principal{ID: "u-1", Role: enums.RoleUser}, ok: true}, status: http.StatusOK},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := Session(tc.src, nil)(RequireAuthenticated(nil)(okHandler(nil)))
			if resp := serve(h); resp.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.Code)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		src    stubPrincipalSource
		status int
	}{
		{name: "anonymous", src: stubPrincipalSource{}, status: http.StatusUnauthorized},
		{name: "customer", src: stubPrincipalSource{principal: users.Principal{ID: "u-1", Role: enums.RoleUser}, ok: true}, status: http.StatusForbidden},
		{name: "admin", src: stubPrincipalSource{principal: users.Principal{ID: "a-1", Role: enums.RoleAdmin}, ok: true}, status: http.StatusOK},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := Session(tc.src, nil)(RequireAdmin(nil)(okHandler(nil)))
			if resp := serve(h); resp.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.Code)
			}
		})
	}
}

func TestRequestIDEchoesHeader(t *testing.T) {
	t.Parallel()

	h := RequestID(nil)(okHandler(nil))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-42")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	if got := resp.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	resp = serve(h)
	if resp.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestRecovererRendersInternalError(t *testing.T) {
	t.Parallel()

	h := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	if resp := serve(h); resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestLoggingRecorderFlushes(t *testing.T) {
	t.Parallel()

	h := Logging(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Flusher); !ok {
			t.Errorf("expected recorder to implement http.Flusher")
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	if resp := serve(h); resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", resp.Code)
	}
}
