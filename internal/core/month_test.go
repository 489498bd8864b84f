package core

import (
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	for _, in := range []string{"2025-12-01", "2025-12-17", "2025-12"} {
		m, err := ParseMonth(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if m.String() != "2025-12-01" || m.Key() != "2025-12" {
			t.Fatalf("%q parsed as %s", in, m)
		}
	}
	if _, err := ParseMonth("december"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMonthArithmetic(t *testing.T) {
	dec := NewMonth(2025, time.December)
	if dec.Next() != NewMonth(2026, time.January) {
		t.Fatalf("next of december: %s", dec.Next())
	}
	if dec.AddMonths(-12) != NewMonth(2024, time.December) {
		t.Fatalf("AddMonths(-12): %s", dec.AddMonths(-12))
	}
	if got := dec.MonthsUntil(NewMonth(2026, time.June)); got != 6 {
		t.Fatalf("MonthsUntil = %d, want 6", got)
	}
	if got := dec.MonthsUntil(NewMonth(2025, time.March)); got != -9 {
		t.Fatalf("MonthsUntil = %d, want -9", got)
	}
	if !dec.Contains(NewDate(2025, 12, 31)) || dec.Contains(NewDate(2026, 1, 1)) {
		t.Fatalf("Contains mismatch")
	}
}
