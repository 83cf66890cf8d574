package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrNoPermission,
		ErrNoResource,
		ErrInvalidTarget,
		ErrConflict,
		ErrBlocked,
		ErrCooldown,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeOf(t *testing.T) {
	err := Errorf(ErrConflict, "faction %s exists", "RUST")
	if CodeOf(err) != ErrConflict {
		t.Fatalf("expected conflict, got %q", CodeOf(err))
	}
	wrapped := fmt.Errorf("claim: %w", err)
	if CodeOf(wrapped) != ErrConflict {
		t.Fatalf("expected code through wrapping, got %q", CodeOf(wrapped))
	}
	if CodeOf(nil) != "" {
		t.Fatalf("expected empty code for nil")
	}
	inv := Invariantf("user %s is not a member", "u1")
	if !errors.Is(inv, ErrInvariant) {
		t.Fatalf("expected invariant error, got %v", inv)
	}
	if CodeOf(inv) != ErrInternal {
		t.Fatalf("expected invariant to map to internal, got %q", CodeOf(inv))
	}
}
