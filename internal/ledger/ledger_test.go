package ledger

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEligible_NeverSeen(t *testing.T) {
	l := New(5 * time.Minute)

	if !l.Eligible("abc123", t0) {
		t.Errorf("expected an unseen aircraft to be eligible")
	}
}

func TestEligible_WithinCooldown(t *testing.T) {
	l := New(5 * time.Minute)
	l.MarkNotified("abc123", t0)

	for _, dt := range []time.Duration{0, time.Second, 4 * time.Minute, 5*time.Minute - time.Nanosecond} {
		if l.Eligible("abc123", t0.Add(dt)) {
			t.Errorf("expected ineligible at +%v", dt)
		}
	}
}

func TestEligible_AfterCooldown(t *testing.T) {
	l := New(5 * time.Minute)
	l.MarkNotified("abc123", t0)

	if !l.Eligible("abc123", t0.Add(5*time.Minute)) {
		t.Errorf("expected eligible exactly at cooldown boundary")
	}
	if !l.Eligible("abc123", t0.Add(time.Hour)) {
		t.Errorf("expected eligible well after cooldown")
	}
}

func TestEligible_IndependentPerAircraft(t *testing.T) {
	l := New(5 * time.Minute)
	l.MarkNotified("abc123", t0)

	if !l.Eligible("def456", t0.Add(time.Second)) {
		t.Errorf("cooldown for one aircraft must not block another")
	}
}

func TestMarkNotified_SweepsStaleEntries(t *testing.T) {
	l := New(5 * time.Minute)

	l.MarkNotified("old001", t0)
	// Just over 2x cooldown later, a new mark triggers the sweep.
	l.MarkNotified("new001", t0.Add(10*time.Minute+time.Second))

	if l.Len() != 1 {
		t.Fatalf("expected stale entry to be swept, ledger has %d entries", l.Len())
	}
	if !l.Eligible("old001", t0.Add(10*time.Minute+2*time.Second)) {
		t.Errorf("swept aircraft should be eligible again")
	}

	_, _, swept := l.Stats()
	if swept != 1 {
		t.Errorf("expected 1 sweep removal, got %d", swept)
	}
}

func TestMarkNotified_SweepKeepsRecentEntries(t *testing.T) {
	l := New(5 * time.Minute)

	l.MarkNotified("a", t0)
	l.MarkNotified("b", t0.Add(9*time.Minute))

	// "a" is 9 minutes old, under the 10 minute max age.
	if l.Len() != 2 {
		t.Errorf("expected both entries retained, got %d", l.Len())
	}
}

func TestNew_DefaultCooldown(t *testing.T) {
	l := New(0)
	if l.Cooldown() != 5*time.Minute {
		t.Errorf("expected default cooldown of 5m, got %v", l.Cooldown())
	}
}
