package faults

import (
	"fmt"
	"testing"
)

func TestTaxonomyPredicates(t *testing.T) {
	cases := []struct {
		err  error
		pred func(error) bool
	}{
		{Validation("capacity must be at least %d", 1), IsValidation},
		{InvalidState("acknowledge", "dispatched"), IsInvalidState},
		{Conflict("ambulance %s already dispatched", "a1"), IsConflict},
		{NotFound("ambulance", "a1"), IsNotFound},
	}
	for i, c := range cases {
		if !c.pred(c.err) {
			t.Errorf("case %d: predicate rejected its own error %v", i, c.err)
		}
	}
	if IsConflict(Validation("nope")) {
		t.Fatal("validation error matched conflict predicate")
	}
}

func TestPredicatesUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("assign: %w", Conflict("ambulance no longer available"))
	if !IsConflict(wrapped) {
		t.Fatal("wrapped conflict not detected")
	}
	if IsNotFound(wrapped) {
		t.Fatal("wrapped conflict misdetected as not found")
	}
}

func TestMessages(t *testing.T) {
	if got := NotFound("dispatch", "d9").Error(); got != "dispatch d9 not found" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := InvalidState("complete", "assigned").Error(); got != "complete not allowed in state assigned" {
		t.Fatalf("unexpected message %q", got)
	}
}
