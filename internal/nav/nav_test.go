package nav

import (
	"testing"
	"time"
)

func TestCursorWrapsYears(t *testing.T) {
	dec := Cursor{Year: 2024, Month: time.December}
	if got := dec.Next(); got != (Cursor{Year: 2025, Month: time.January}) {
		t.Fatalf("December.Next() = %v", got)
	}
	jan := Cursor{Year: 2024, Month: time.January}
	if got := jan.Previous(); got != (Cursor{Year: 2023, Month: time.December}) {
		t.Fatalf("January.Previous() = %v", got)
	}
}

func TestNavigatorRoundTrip(t *testing.T) {
	start := Cursor{Year: 2024, Month: time.March}
	var seen []Cursor
	n := New(start, func(c Cursor) { seen = append(seen, c) })

	for i := 0; i < 12; i++ {
		n.Next()
	}
	if got := n.Current(); got != (Cursor{Year: 2025, Month: time.March}) {
		t.Fatalf("after 12 steps forward got %v", got)
	}
	for i := 0; i < 12; i++ {
		n.Previous()
	}
	if got := n.Current(); got != start {
		t.Fatalf("round trip ended at %v, want %v", got, start)
	}
	if len(seen) != 24 {
		t.Fatalf("expected a change callback per move, got %d", len(seen))
	}
	if seen[11] != (Cursor{Year: 2025, Month: time.March}) {
		t.Fatalf("unexpected callback cursor %v", seen[11])
	}
}

func TestNavigatorUnbounded(t *testing.T) {
	n := New(Cursor{Year: 1, Month: time.January}, nil)
	if got := n.Previous(); got != (Cursor{Year: 0, Month: time.December}) {
		t.Fatalf("navigation below year 1 should not be clamped, got %v", got)
	}
	if got := n.Set(Cursor{Year: 9999, Month: time.December}).Next(); got != (Cursor{Year: 10000, Month: time.January}) {
		t.Fatalf("navigation past 9999 should not be clamped, got %v", got)
	}
}

func TestCursorForAndString(t *testing.T) {
	c := CursorFor(time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC))
	if c.String() != "2026-10" {
		t.Fatalf("String() = %q", c.String())
	}
}
