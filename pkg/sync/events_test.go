package sync

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/sentrynode/sentrynode/pkg/notify"
	"github.com/sentrynode/sentrynode/pkg/webhook"
)

func TestSplitEventName(t *testing.T) {
	tests := []struct {
		name       string
		event      string
		wantEntity string
		wantAction string
		wantOK     bool
	}{
		{"simple", "user.created", "user", "created", true},
		{"underscored entity", "user_hwid_devices.deleted", "user_hwid_devices", "deleted", true},
		{"no dot", "malformed", "", "", false},
		{"trailing dot", "node.", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entity, action, ok := splitEventName(tt.event)
			if ok != tt.wantOK || entity != tt.wantEntity || action != tt.wantAction {
				t.Errorf("splitEventName(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.event, entity, action, ok, tt.wantEntity, tt.wantAction, tt.wantOK)
			}
		})
	}
}

func TestSplitState_ExtractsOldState(t *testing.T) {
	raw := json.RawMessage(`{"uuid":"abc","status":"ACTIVE","old_state":{"status":"LIMITED"}}`)

	newState, oldState := splitState(raw)
	if newState["status"] != "ACTIVE" {
		t.Errorf("newState[status] = %v, want ACTIVE", newState["status"])
	}
	if _, present := newState["old_state"]; present {
		t.Error("old_state should be stripped out of newState")
	}
	if oldState["status"] != "LIMITED" {
		t.Errorf("oldState[status] = %v, want LIMITED", oldState["status"])
	}
}

func TestSplitState_NoOldState(t *testing.T) {
	raw := json.RawMessage(`{"uuid":"abc"}`)
	_, oldState := splitState(raw)
	if oldState != nil {
		t.Errorf("oldState = %v, want nil", oldState)
	}
}

func TestEntityID(t *testing.T) {
	if got := entityID(map[string]any{"uuid": "u-1"}); got != "u-1" {
		t.Errorf("entityID = %q, want u-1", got)
	}
	if got := entityID(map[string]any{"id": "42"}); got != "42" {
		t.Errorf("entityID = %q, want 42", got)
	}
	if got := entityID(nil); got != "" {
		t.Errorf("entityID(nil) = %q, want empty", got)
	}
}

type fakeNotifier struct {
	events []notify.LifecycleEvent
}

func (f *fakeNotifier) NotifyLifecycle(_ context.Context, event notify.LifecycleEvent) error {
	f.events = append(f.events, event)
	return nil
}

func TestHandleEvent_DisconnectedStoreStillNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	w := New(nil, nil, notifier, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	w.HandleEvent(context.Background(), webhook.Event{
		Event: "crm.deal_won",
		Data:  json.RawMessage(`{"uuid":"deal-1","amount":500}`),
	})

	if len(notifier.events) != 1 {
		t.Fatalf("events = %d, want 1", len(notifier.events))
	}
	if notifier.events[0].Topic != notify.TopicCrm {
		t.Errorf("topic = %q, want crm", notifier.events[0].Topic)
	}
	if notifier.events[0].EntityID != "deal-1" {
		t.Errorf("entity id = %q, want deal-1", notifier.events[0].EntityID)
	}
}

func TestHandleEvent_UnknownEntitySkipsNotification(t *testing.T) {
	notifier := &fakeNotifier{}
	w := New(nil, nil, notifier, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	w.HandleEvent(context.Background(), webhook.Event{
		Event: "unknown_thing.created",
		Data:  json.RawMessage(`{}`),
	})

	if len(notifier.events) != 0 {
		t.Fatalf("events = %d, want 0 for unmapped entity", len(notifier.events))
	}
}
