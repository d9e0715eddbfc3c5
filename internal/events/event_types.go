package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/event-admin/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded         EventType = "login_succeeded"
	EventRefreshRotated         EventType = "refresh_rotated"
	EventRefreshReplayDetected  EventType = "refresh_replay_detected"
	EventLoggedOut              EventType = "logged_out"
	EventSessionsRevoked        EventType = "sessions_revoked"
	EventRevocationStateChanged EventType = "revocation_state_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Kind domain.ActorKind `json:"kind,omitempty"`
	ID   string           `json:"id,omitempty"`
}

// Event represents a domain event emitted by the auth core.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New builds an event with a fresh id.
func New(eventType EventType, actor Actor, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Actor:     actor,
		Timestamp: at,
		Payload:   payload,
	}
}

// LoginSucceededPayload payload.
type LoginSucceededPayload struct {
	Role domain.Role `json:"role,omitempty"`
}

// RefreshReplayPayload payload.
type RefreshReplayPayload struct {
	SessionsRevoked bool `json:"sessions_revoked"`
}

// LoggedOutPayload payload.
type LoggedOutPayload struct {
	RefreshRevoked bool `json:"refresh_revoked"`
}

// SessionsRevokedPayload payload.
type SessionsRevokedPayload struct {
	Reason string `json:"reason"`
}

// RevocationStateChangedPayload payload.
type RevocationStateChangedPayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Error string `json:"error,omitempty"`
}
