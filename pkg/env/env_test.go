package env

import "testing"

func TestGetTrimsAndFallsBack(t *testing.T) {
	t.Setenv("TOURBOOK_TEST_VALUE", "  ")
	if got := Get("TOURBOOK_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
	t.Setenv("TOURBOOK_TEST_VALUE", " console ")
	if got := Get("TOURBOOK_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestFirstHonoursOrder(t *testing.T) {
	t.Setenv("TOURBOOK_A", "")
	t.Setenv("TOURBOOK_B", "b")
	t.Setenv("TOURBOOK_C", "c")
	got, ok := First("TOURBOOK_A", "TOURBOOK_B", "TOURBOOK_C")
	if !ok || got != "b" {
		t.Fatalf("expected b, got %q ok=%v", got, ok)
	}
	if _, ok := First("TOURBOOK_A"); ok {
		t.Fatalf("expected no value")
	}
}
