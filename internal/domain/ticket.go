package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketSeverity enumerates impact levels assigned by the classifier.
type TicketSeverity string

const (
	TicketSeverityLow      TicketSeverity = "LOW"
	TicketSeverityMedium   TicketSeverity = "MEDIUM"
	TicketSeverityHigh     TicketSeverity = "HIGH"
	TicketSeverityCritical TicketSeverity = "CRITICAL"
)

// ParseSeverity normalizes model-produced severity text. Unknown values
// fall back to MEDIUM rather than failing the run.
func ParseSeverity(raw string) TicketSeverity {
	switch TicketSeverity(strings.ToUpper(strings.TrimSpace(raw))) {
	case TicketSeverityLow:
		return TicketSeverityLow
	case TicketSeverityMedium:
		return TicketSeverityMedium
	case TicketSeverityHigh:
		return TicketSeverityHigh
	case TicketSeverityCritical:
		return TicketSeverityCritical
	default:
		return TicketSeverityMedium
	}
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	ExternalKey string
	RequesterID string
	Title       string
	Description string
	Severity    TicketSeverity
	Status      TicketStatus
	Solution    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
}

// TicketDraft is the classifier's proposal for a new ticket. Immutable
// once produced, consumed exactly once by ticket creation.
type TicketDraft struct {
	Title       string
	Description string
	Severity    TicketSeverity
}
