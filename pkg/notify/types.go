// Package notify implements throttled, topic-routed delivery of violation
// detections and control-plane lifecycle events to operator chats.
package notify

// Topic partitions outbound notifications the way operator chats are
// configured to receive them.
type Topic string

const (
	TopicUsers      Topic = "users"
	TopicNodes      Topic = "nodes"
	TopicService    Topic = "service"
	TopicHwid       Topic = "hwid"
	TopicCrm        Topic = "crm"
	TopicErrors     Topic = "errors"
	TopicViolations Topic = "violations"
)

// FieldDiff is a single field-by-field change rendered for a lifecycle
// notification that carried an old_state.
type FieldDiff struct {
	Field string
	Old   string
	New   string
}

// LifecycleEvent is a control-plane entity change forwarded by the sync
// worker (user.created, node.updated, crm.*, ...). It is never throttled.
type LifecycleEvent struct {
	Topic    Topic
	Kind     string // "user.created", "node.updated", "crm.deal_won", ...
	EntityID string
	Summary  string
	OldState map[string]any // nil if the upsert provided none
	NewState map[string]any
}
