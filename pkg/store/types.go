package store

import (
	"strings"
	"time"
)

// SnapshotVersion is the on-disk format version written by this code.
const SnapshotVersion = "2.0"

// Status is the lifecycle state of a Notification. The only legal
// transitions are pending -> delivered and pending -> cancelled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// ConversationTurn is one inbound/outbound exchange. Immutable once
// appended.
type ConversationTurn struct {
	Timestamp     time.Time `json:"timestamp"`
	UserMessage   string    `json:"user_message"`
	AgentResponse string    `json:"agent_response"`
	Intent        string    `json:"intent,omitempty"`
	ToolUsed      string    `json:"tool_used,omitempty"`
}

// TrackedEntity is an arbitrary structured record (a tracked product,
// a watched flight) owned by collaborators. The store only guarantees
// storage and retrieval; Fields carries whatever schema the caller uses.
type TrackedEntity struct {
	ID           string         `json:"id"`
	Fields       map[string]any `json:"fields"`
	TrackedSince time.Time      `json:"tracked_since"`
	LastChecked  time.Time      `json:"last_checked"`
}

// Notification is a scheduled one-shot reminder. DueAt is an absolute
// instant, resolved at creation time by the collaborator from natural
// language plus the timezone label.
type Notification struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Task        string     `json:"task"`
	DueAt       time.Time  `json:"due_at"`
	Timezone    string     `json:"timezone"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// UserRecord is the full per-user state. Exactly one exists per
// normalized user identifier; created lazily, never deleted.
type UserRecord struct {
	FirstSeen           time.Time          `json:"first_seen"`
	LastInteraction     time.Time          `json:"last_interaction"`
	Preferences         map[string]any     `json:"preferences"`
	ConversationHistory []ConversationTurn `json:"conversation_history"`
	TrackedEntities     []TrackedEntity    `json:"tracked_entities"`
	Notifications       []Notification     `json:"notifications"`
}

// Snapshot is the serialized envelope for the whole store.
type Snapshot struct {
	Version   string                 `json:"version"`
	CreatedAt time.Time              `json:"created_at"`
	Users     map[string]*UserRecord `json:"users"`
}

func newUserRecord(now time.Time) *UserRecord {
	return &UserRecord{
		FirstSeen:           now,
		LastInteraction:     now,
		Preferences:         map[string]any{},
		ConversationHistory: []ConversationTurn{},
		TrackedEntities:     []TrackedEntity{},
		Notifications:       []Notification{},
	}
}

// NormalizeUserID strips the messaging-channel prefix and leading plus
// sign so the same phone number always maps to one record.
func NormalizeUserID(id string) string {
	id = strings.TrimPrefix(id, "whatsapp:")
	id = strings.TrimPrefix(id, "+")
	return id
}

func (r *UserRecord) clone() *UserRecord {
	if r == nil {
		return nil
	}
	out := &UserRecord{
		FirstSeen:           r.FirstSeen,
		LastInteraction:     r.LastInteraction,
		Preferences:         make(map[string]any, len(r.Preferences)),
		ConversationHistory: append([]ConversationTurn(nil), r.ConversationHistory...),
		TrackedEntities:     make([]TrackedEntity, 0, len(r.TrackedEntities)),
		Notifications:       make([]Notification, 0, len(r.Notifications)),
	}
	for k, v := range r.Preferences {
		out.Preferences[k] = v
	}
	for _, e := range r.TrackedEntities {
		fields := make(map[string]any, len(e.Fields))
		for k, v := range e.Fields {
			fields[k] = v
		}
		e.Fields = fields
		out.TrackedEntities = append(out.TrackedEntities, e)
	}
	for _, n := range r.Notifications {
		if n.DeliveredAt != nil {
			t := *n.DeliveredAt
			n.DeliveredAt = &t
		}
		out.Notifications = append(out.Notifications, n)
	}
	return out
}
