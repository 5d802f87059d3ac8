package dto

import (
	"time"

	"github.com/spec-kit/support-resolver/internal/domain"
)

// TicketSummary compact ticket representation for listings.
type TicketSummary struct {
	ID          string                `json:"id"`
	ExternalKey string                `json:"external_key"`
	Title       string                `json:"title"`
	Severity    domain.TicketSeverity `json:"severity"`
	Status      domain.TicketStatus   `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketDetailResponse full ticket representation.
type TicketDetailResponse struct {
	ID          string                `json:"id"`
	ExternalKey string                `json:"external_key"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Severity    domain.TicketSeverity `json:"severity"`
	Status      domain.TicketStatus   `json:"status"`
	Solution    *string               `json:"solution,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	ResolvedAt  *time.Time            `json:"resolved_at,omitempty"`
}
