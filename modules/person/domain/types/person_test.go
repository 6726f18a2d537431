package types

import (
	"testing"
	"time"
)

func TestNewRootPairCanonicalizes(t *testing.T) {
	p1, err := NewRootPair("b", "a")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	p2, err := NewRootPair("a", "b")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p1 != p2 {
		t.Fatalf("p1=%+v p2=%+v", p1, p2)
	}
	if p1.A != "a" || p1.B != "b" {
		t.Fatalf("pair=%+v", p1)
	}
}

func TestNewRootPairRejectsSelfAndEmpty(t *testing.T) {
	if _, err := NewRootPair("a", "a"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewRootPair("", "a"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRootPairContainsOther(t *testing.T) {
	p, _ := NewRootPair("x", "y")
	if !p.Contains("x") || !p.Contains("y") || p.Contains("z") {
		t.Fatalf("pair=%+v", p)
	}
	if p.Other("x") != "y" || p.Other("y") != "x" || p.Other("z") != "" {
		t.Fatalf("pair=%+v", p)
	}
}

func TestTrusteeLapsed(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	if (Person{}).TrusteeLapsed(now) {
		t.Fatal("no trustee, no lapse")
	}
	if !(Person{TrusteeID: "u2", TrusteeUntil: &yesterday}).TrusteeLapsed(now) {
		t.Fatal("expected lapse")
	}
	if (Person{TrusteeID: "u2", TrusteeUntil: &tomorrow}).TrusteeLapsed(now) {
		t.Fatal("term still running")
	}
}

func TestIsLegacy(t *testing.T) {
	if (Person{}).IsLegacy() {
		t.Fatal("no death date")
	}
	if !(Person{DeathDate: "2020-01-01"}).IsLegacy() {
		t.Fatal("death date set")
	}
}
