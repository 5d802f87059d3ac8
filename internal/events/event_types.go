package events

import (
	"time"

	"github.com/spec-kit/support-resolver/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketResolved   EventType = "ticket_resolved"
	EventResolutionFailed EventType = "resolution_failed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type   domain.SubjectType `json:"type"`
	UserID *string            `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ExternalKey string                `json:"external_key"`
	Severity    domain.TicketSeverity `json:"severity"`
	Title       string                `json:"title"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	Source            domain.SolutionSource `json:"source"`
	Score             *float64              `json:"score,omitempty"`
	NeedsConfirmation bool                  `json:"needs_confirmation"`
	Closed            bool                  `json:"closed"`
}

// ResolutionFailedPayload payload.
type ResolutionFailedPayload struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}
