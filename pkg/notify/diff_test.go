package notify

import "testing"

func TestDiffFields_NilOldStateYieldsNoDiffs(t *testing.T) {
	diffs := DiffFields(nil, map[string]any{"status": "ACTIVE"})
	if diffs != nil {
		t.Fatalf("expected nil diffs for nil old_state, got %v", diffs)
	}
}

func TestDiffFields_DetectsChangedFields(t *testing.T) {
	old := map[string]any{"status": "ACTIVE", "username": "alice"}
	new := map[string]any{"status": "DISABLED", "username": "alice"}

	diffs := DiffFields(old, new)
	if len(diffs) != 1 {
		t.Fatalf("expected 1 diff, got %d: %v", len(diffs), diffs)
	}
	if diffs[0].Field != "status" || diffs[0].Old != "ACTIVE" || diffs[0].New != "DISABLED" {
		t.Fatalf("unexpected diff: %+v", diffs[0])
	}
}

func TestDiffFields_NewFieldHasPlaceholderOld(t *testing.T) {
	old := map[string]any{"status": "ACTIVE"}
	new := map[string]any{"status": "ACTIVE", "telegram_id": "12345"}

	diffs := DiffFields(old, new)
	if len(diffs) != 1 || diffs[0].Field != "telegram_id" || diffs[0].Old != "—" {
		t.Fatalf("unexpected diff: %+v", diffs)
	}
}
