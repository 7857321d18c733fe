package notify

import (
	"fmt"
	"sort"
)

// DiffFields compares oldState against newState field by field and returns
// the changed fields in stable (sorted) order, used to render lifecycle
// notifications against old_state. A nil oldState yields no diffs; the
// lifecycle message then carries only its header.
func DiffFields(oldState, newState map[string]any) []FieldDiff {
	if oldState == nil {
		return nil
	}

	keys := make([]string, 0, len(newState))
	for k := range newState {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []FieldDiff
	for _, k := range keys {
		newVal := newState[k]
		oldVal, existed := oldState[k]
		if existed && fmt.Sprint(oldVal) == fmt.Sprint(newVal) {
			continue
		}
		diffs = append(diffs, FieldDiff{
			Field: k,
			Old:   formatValue(oldVal, existed),
			New:   formatValue(newVal, true),
		})
	}
	return diffs
}

func formatValue(v any, present bool) string {
	if !present || v == nil {
		return "—"
	}
	return fmt.Sprint(v)
}
