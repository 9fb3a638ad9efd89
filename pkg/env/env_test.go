package env

import "testing"

func TestGetFallsBackOnBlank(t *testing.T) {
	t.Setenv("JEMI_TEST_VALUE", "   ")
	if got := Get("JEMI_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("JEMI_TEST_VALUE", "console")
	if got := Get("JEMI_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
}

func TestFirstPicksEarliestSetKey(t *testing.T) {
	t.Setenv("JEMI_TEST_A", "")
	t.Setenv("JEMI_TEST_B", "web.1")
	t.Setenv("JEMI_TEST_C", "other")
	if got := First("JEMI_TEST_A", "JEMI_TEST_B", "JEMI_TEST_C"); got != "web.1" {
		t.Fatalf("expected web.1, got %q", got)
	}
	if got := First("JEMI_TEST_MISSING"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
