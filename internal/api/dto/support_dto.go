package dto

import "github.com/spec-kit/support-resolver/internal/domain"

// SupportMessageRequest payload for an incoming support message.
type SupportMessageRequest struct {
	Message string `json:"message"`
}

// SupportMessageResponse is the outcome of one resolution run.
type SupportMessageResponse struct {
	Reply                string                `json:"reply"`
	TicketID             string                `json:"ticket_id,omitempty"`
	TicketCreated        bool                  `json:"ticket_created"`
	Source               domain.SolutionSource `json:"source,omitempty"`
	NeedsConfirmation    bool                  `json:"needs_confirmation"`
	ConfirmationQuestion string                `json:"confirmation_question,omitempty"`
}
