package rates

import (
	"testing"
	"time"
)

func TestCooldown(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if ok, _ := Cooldown(base, time.Time{}, time.Hour); !ok {
		t.Fatalf("zero last time should not block")
	}
	ok, rem := Cooldown(base.Add(20*time.Minute), base, time.Hour)
	if ok || rem != 40*time.Minute {
		t.Fatalf("expected blocked with 40m remaining, got ok=%v rem=%v", ok, rem)
	}
	if ok, _ := Cooldown(base.Add(time.Hour), base, time.Hour); !ok {
		t.Fatalf("expected cooldown elapsed at boundary")
	}
}

func TestWithinWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !WithinWindow(base.Add(time.Minute), base, time.Hour) {
		t.Fatalf("expected inside window")
	}
	if WithinWindow(base.Add(time.Hour), base, time.Hour) {
		t.Fatalf("window end is exclusive")
	}
	if WithinWindow(base, base, 0) {
		t.Fatalf("zero window never matches")
	}
}
