package investigation

import "testing"

func TestResolveTurnaroundInstantWinsOverEverything(t *testing.T) {
	if got := ResolveTurnaround(true, MinutesOverride(45), 10, 20); got != 0 {
		t.Fatalf("expected 0 for instant results, got %d", got)
	}
	if got := ResolveTurnaround(true, UnsetOverride(), 0, 0); got != 0 {
		t.Fatalf("expected 0 for instant results, got %d", got)
	}
}

func TestResolveTurnaroundOverride(t *testing.T) {
	if got := ResolveTurnaround(false, MinutesOverride(45), 10, 20); got != 45 {
		t.Fatalf("expected override 45, got %d", got)
	}
}

func TestResolveTurnaroundPerTestDefault(t *testing.T) {
	if got := ResolveTurnaround(false, UnsetOverride(), 10, 20); got != 10 {
		t.Fatalf("expected per-test default 10, got %d", got)
	}
}

func TestResolveTurnaroundCaseDefault(t *testing.T) {
	if got := ResolveTurnaround(false, UnsetOverride(), 0, 20); got != 20 {
		t.Fatalf("expected case default 20, got %d", got)
	}
}

func TestResolveTurnaroundGlobalFallback(t *testing.T) {
	if got := ResolveTurnaround(false, UnsetOverride(), 0, 0); got != 30 {
		t.Fatalf("expected fallback 30, got %d", got)
	}
}

func TestOverrideZeroMeansInstantNotUnset(t *testing.T) {
	zero := 0
	if got := ResolveTurnaround(false, OverrideFromRequest(&zero), 10, 20); got != 0 {
		t.Fatalf("expected explicit zero to mean instant, got %d", got)
	}
	if got := ResolveTurnaround(false, OverrideFromRequest(nil), 10, 20); got != 10 {
		t.Fatalf("expected nil override to fall through, got %d", got)
	}
}
