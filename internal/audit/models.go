package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor capture is best-effort; do not block critical flows on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorStaffID is the authenticated staff member causing the event
	// (empty for system-originated events).
	ActorStaffID string `json:"actor_staff_id,omitempty" db:"actor_staff_id"`

	// Target identifiers (optional, depending on the event type).
	ConversationID int64  `json:"conversation_id,omitempty" db:"conversation_id"`
	CallID         int64  `json:"call_id,omitempty" db:"call_id"`
	RoomID         string `json:"room_id,omitempty" db:"room_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeWebhookDropped     EventType = "webhook_dropped"
	EventTypeStaffMessageSent   EventType = "staff_message_sent"
	EventTypeCallInitiated      EventType = "call_initiated"
	EventTypeCallStatusChanged  EventType = "call_status_changed"
	EventTypeConversationClosed EventType = "conversation_closed"
)
