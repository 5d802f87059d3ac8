// Package agent holds the LLM-backed classifier and resolver used by
// the resolution workflow. Both return tagged structured outputs and
// are inherently non-deterministic across runs.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-resolver/internal/domain"
	"github.com/spec-kit/support-resolver/internal/llm"
)

const classifierSystemPrompt = "You are a helpful IT support assistant specializing in login/auth issues. " +
	"Classify whether the user's message is a login/authentication issue. " +
	"If it is, set needs_ticket=true and create a concise ticket draft with: " +
	"ticket_title (short), issue_description (detailed), severity (Low/Medium/High/Critical). " +
	"Severity guidance: Critical=production outage or no user can login; High=account locked or 2FA blocking; " +
	"Medium=frequent failures, OTP not received; Low=intermittent or browser cache/session issues. " +
	"If not a login/auth issue, set needs_ticket=false and answer normally with troubleshooting guidance. " +
	"Be brief and actionable."

var classifierSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"needs_ticket": map[string]any{"type": "boolean"},
		"message":      map[string]any{"type": "string"},
		"ticket": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ticket_title":      map[string]any{"type": "string"},
				"issue_description": map[string]any{"type": "string"},
				"severity": map[string]any{
					"type": "string",
					"enum": []string{"Low", "Medium", "High", "Critical"},
				},
			},
			"required": []string{"ticket_title", "issue_description", "severity"},
		},
	},
	"required": []string{"needs_ticket", "message"},
}

type classifierOutput struct {
	NeedsTicket bool   `json:"needs_ticket"`
	Message     string `json:"message"`
	Ticket      *struct {
		TicketTitle      string `json:"ticket_title"`
		IssueDescription string `json:"issue_description"`
		Severity         string `json:"severity"`
	} `json:"ticket"`
}

// Classifier maps raw user text to a ticket-worthiness verdict.
type Classifier struct {
	chat   llm.ChatClient
	logger *zap.Logger
}

// NewClassifier constructs the agent.
func NewClassifier(chat llm.ChatClient, logger *zap.Logger) *Classifier {
	return &Classifier{chat: chat, logger: logger}
}

// Classify runs one structured-output call. A transport failure maps
// to ErrClassificationUnavailable; output that violates the schema
// contract maps to ErrMalformedAgentOutput, with whatever partial
// classification could be salvaged.
func (a *Classifier) Classify(ctx context.Context, message string) (*domain.Classification, error) {
	userPrompt := "User message: " + message

	raw, err := a.chat.CompleteJSON(ctx, classifierSystemPrompt, userPrompt, classifierSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClassificationUnavailable, err)
	}

	var out classifierOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return nil, fmt.Errorf("%w: classifier returned invalid JSON: %v", domain.ErrMalformedAgentOutput, err)
	}

	classification := &domain.Classification{
		NeedsTicket:      out.NeedsTicket,
		AssistantMessage: out.Message,
	}
	if out.NeedsTicket {
		if out.Ticket == nil {
			return classification, fmt.Errorf("%w: needs_ticket=true with no ticket draft", domain.ErrMalformedAgentOutput)
		}
		classification.Draft = &domain.TicketDraft{
			Title:       strings.TrimSpace(out.Ticket.TicketTitle),
			Description: strings.TrimSpace(out.Ticket.IssueDescription),
			Severity:    domain.ParseSeverity(out.Ticket.Severity),
		}
		if classification.Draft.Description == "" {
			return classification, fmt.Errorf("%w: ticket draft missing issue description", domain.ErrMalformedAgentOutput)
		}
	}
	return classification, nil
}
