package httperr

import "testing"

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestIsValidation(t *testing.T) {
	if IsValidation(nil) {
		t.Fatalf("expected false for nil")
	}
	if !IsValidation(NewValidation("bad")) {
		t.Fatalf("expected true for ValidationError")
	}
	if IsValidation(assertErr("other")) {
		t.Fatalf("expected false for non-ValidationError")
	}
}

func TestIsUnauthorized(t *testing.T) {
	if !IsUnauthorized(NewUnauthorized("who")) {
		t.Fatalf("expected true")
	}
	if IsUnauthorized(NewValidation("bad")) {
		t.Fatalf("expected false for other typed error")
	}
}

func TestForbiddenCarriesReason(t *testing.T) {
	err := NewForbidden("BRANCH_NOT_OWNED", "not_owner")
	if !IsForbidden(err) {
		t.Fatalf("expected forbidden")
	}
	if got := ForbiddenReason(err); got != "not_owner" {
		t.Fatalf("reason=%q", got)
	}
	if got := ForbiddenReason(NewConflict("x")); got != "" {
		t.Fatalf("expected empty reason, got %q", got)
	}
	if got := ForbiddenReason(nil); got != "" {
		t.Fatalf("expected empty reason for nil, got %q", got)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(NewNotFound("gone")) {
		t.Fatalf("expected true")
	}
	if IsNotFound(assertErr("gone")) {
		t.Fatalf("expected false")
	}
}

func TestIsConflict(t *testing.T) {
	if !IsConflict(NewConflict("already archived")) {
		t.Fatalf("expected true")
	}
	if IsConflict(nil) {
		t.Fatalf("expected false for nil")
	}
}

func TestIsExpired(t *testing.T) {
	if !IsExpired(NewExpired("request expired")) {
		t.Fatalf("expected true")
	}
	if IsExpired(NewConflict("nope")) {
		t.Fatalf("expected false")
	}
}

func TestIsCapacityExceeded(t *testing.T) {
	if !IsCapacityExceeded(NewCapacityExceeded("grove full")) {
		t.Fatalf("expected true")
	}
	if IsCapacityExceeded(NewNotFound("x")) {
		t.Fatalf("expected false")
	}
}

func TestIsUnavailable(t *testing.T) {
	if !IsUnavailable(NewUnavailable("store down")) {
		t.Fatalf("expected true")
	}
	if IsUnavailable(assertErr("store down")) {
		t.Fatalf("expected false")
	}
}
