package store

import (
	"strings"
	"testing"
)

func TestGroupIDStableWhenLeadAlreadyGrouped(t *testing.T) {
	existing := "grp_7f3a"

	first := groupIDFor(&existing)
	second := groupIDFor(&existing)

	if first != "grp_7f3a" {
		t.Errorf("expected the lead's existing group id, got %s", first)
	}
	if first != second {
		t.Errorf("regrouping the same set must resolve to one group id, got %s then %s", first, second)
	}
}

func TestGroupIDMintedForUngroupedLead(t *testing.T) {
	first := groupIDFor(nil)
	second := groupIDFor(nil)

	if !strings.HasPrefix(first, "grp") {
		t.Errorf("expected a grp-prefixed id, got %s", first)
	}
	if first == second {
		t.Errorf("independent groups must not share an id: %s", first)
	}

	empty := ""
	if got := groupIDFor(&empty); got == "" || got == first {
		t.Errorf("an empty stored group id should mint a fresh one, got %q", got)
	}
}
