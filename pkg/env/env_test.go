package env

import "testing"

func TestGetFallsBack(t *testing.T) {
	t.Setenv("PETSHOP_TEST_ENV_GET", "")
	if got := Get("PETSHOP_TEST_ENV_GET", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("PETSHOP_TEST_ENV_GET", " value ")
	if got := Get("PETSHOP_TEST_ENV_GET", "fallback"); got != "value" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestFirstPicksEarliestSetKey(t *testing.T) {
	t.Setenv("PETSHOP_TEST_A", "")
	t.Setenv("PETSHOP_TEST_B", "b")
	if got := First("x", "PETSHOP_TEST_A", "PETSHOP_TEST_B"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	t.Setenv("PETSHOP_TEST_B", "")
	if got := First("x", "PETSHOP_TEST_A", "PETSHOP_TEST_B"); got != "x" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
