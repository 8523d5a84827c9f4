package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
)

type samplePayload struct {
	Email    string `json:"email" validate:"required,email"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","quantity":0}`))
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details")
	}
	if details["email"] != "must be a valid email" {
		t.Fatalf("unexpected email detail %q", details["email"])
	}
	if details["quantity"] != "must be at least 1" {
		t.Fatalf("unexpected quantity detail %q", details["quantity"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","quantity":1,"extra":true}`))
	var dest samplePayload
	if err := DecodeJSONBody(req, &dest); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyEmpty(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	if err == nil || pkgerrors.As(err).Message() != "request body is required" {
		t.Fatalf("expected missing body error, got %v", err)
	}
}

func TestParseQueryInt64Bounds(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/?credits=12", nil)
	got, err := ParseQueryInt64(req, "credits", 0, 0, 100)
	if err != nil || got != 12 {
		t.Fatalf("expected 12, got %d (%v)", got, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/?credits=-1", nil)
	if _, err := ParseQueryInt64(req, "credits", 0, 0, 100); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected range error, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if got, _ := ParseQueryInt64(req, "credits", 7, 0, 100); got != 7 {
		t.Fatalf("expected default 7, got %d", got)
	}
}

func TestPathID(t *testing.T) {
	t.Parallel()

	if id, err := PathID("product id", "  p-1 "); err != nil || id != "p-1" {
		t.Fatalf("expected trimmed id, got %q (%v)", id, err)
	}
	if _, err := PathID("product id", " "); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
