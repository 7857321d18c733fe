package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sentrynode/sentrynode/internal/model"
	"github.com/sentrynode/sentrynode/pkg/notify"
	"github.com/sentrynode/sentrynode/pkg/webhook"
)

// topicFor maps a control-plane entity class to the operator chat topic it
// is rendered under. "host" rides along with node notifications since
// there is no dedicated hosts topic.
var topicFor = map[string]notify.Topic{
	"user":              notify.TopicUsers,
	"node":              notify.TopicNodes,
	"host":              notify.TopicNodes,
	"user_hwid_devices": notify.TopicHwid,
	"service":           notify.TopicService,
	"crm":               notify.TopicCrm,
	"errors":            notify.TopicErrors,
}

// HandleEvent is the event-driven half of the Sync Worker: it is
// wired as a pkg/webhook.Handler's onEvent callback. On a `*.deleted` event
// it removes the local row (where one exists); otherwise it upserts from the
// event payload. Failures are logged, not returned: pkg/webhook.Handler
// calls onEvent synchronously before it writes its 200 OK, and that
// response does not depend on the outcome.
func (w *Worker) HandleEvent(ctx context.Context, event webhook.Event) {
	entity, action, ok := splitEventName(event.Event)
	if !ok {
		if w.logger != nil {
			w.logger.Warn("sync: malformed event name", "event", event.Event)
		}
		return
	}

	newState, oldState := splitState(event.Data)
	deleted := action == "deleted"

	if w.connected() {
		if err := w.applyMirror(ctx, entity, deleted, event.Data); err != nil && w.logger != nil {
			w.logger.Error("sync: applying event failed", "event", event.Event, "error", err)
		}
	}

	w.emitLifecycle(ctx, entity, event.Event, newState, oldState)
}

// applyMirror persists the event to the store for the entity classes that
// have a dedicated mirror table (user, node). Other classes have no local
// schema (see DESIGN.md) and are observed for notification purposes only.
func (w *Worker) applyMirror(ctx context.Context, entity string, deleted bool, data json.RawMessage) error {
	switch entity {
	case "user":
		return w.applyUserEvent(ctx, deleted, data)
	case "node":
		return w.applyNodeEvent(ctx, deleted, data)
	default:
		return nil
	}
}

func (w *Worker) applyUserEvent(ctx context.Context, deleted bool, data json.RawMessage) error {
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		return fmt.Errorf("decoding user event payload: %w", err)
	}
	if deleted {
		return w.store.DeleteUser(ctx, u.UUID)
	}
	return w.store.UpsertUser(ctx, u)
}

func (w *Worker) applyNodeEvent(ctx context.Context, deleted bool, data json.RawMessage) error {
	var n model.Node
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding node event payload: %w", err)
	}
	if deleted {
		return w.store.DeleteNode(ctx, n.UUID)
	}
	return w.store.UpsertNode(ctx, n)
}

func (w *Worker) emitLifecycle(ctx context.Context, entity, kind string, newState, oldState map[string]any) {
	if w.notifier == nil {
		return
	}
	topic, ok := topicFor[entity]
	if !ok {
		return
	}

	event := notify.LifecycleEvent{
		Topic:    topic,
		Kind:     kind,
		EntityID: entityID(newState),
		Summary:  kind,
		OldState: oldState,
		NewState: newState,
	}
	if err := w.notifier.NotifyLifecycle(ctx, event); err != nil && w.logger != nil {
		w.logger.Error("sync: lifecycle notification failed", "kind", kind, "error", err)
	}
}

// splitEventName splits "user_hwid_devices.created" into ("user_hwid_devices",
// "created"). Entity names may contain underscores but never dots, so the
// last dot is always the action separator.
func splitEventName(name string) (entity, action string, ok bool) {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

// splitState decodes a webhook event's data payload into the new entity
// state, pulling out an embedded "old_state" object if the upstream included
// one, so lifecycle notifications can render a field-by-field diff.
func splitState(raw json.RawMessage) (newState, oldState map[string]any) {
	var full map[string]any
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, nil
	}
	if old, ok := full["old_state"].(map[string]any); ok {
		delete(full, "old_state")
		oldState = old
	}
	return full, oldState
}

func entityID(state map[string]any) string {
	if state == nil {
		return ""
	}
	if id, ok := state["uuid"].(string); ok && id != "" {
		return id
	}
	if id, ok := state["id"].(string); ok {
		return id
	}
	return ""
}
