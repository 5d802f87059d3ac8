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

const resolverSystemPrompt = "You are a ticket resolution agent for login issues. " +
	"If the issue description is too vague, ask 2-4 specific clarifying questions and set needs_more_info=true. " +
	"If enough info is present, set needs_more_info=false and produce a detailed step-by-step solution. " +
	"Solutions must be structured and reusable (use numbered steps, include common causes, and escalation notes)."

var resolverSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"needs_more_info": map[string]any{"type": "boolean"},
		"clarifying_questions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"solution": map[string]any{"type": "string"},
	},
	"required": []string{"needs_more_info"},
}

type resolverOutput struct {
	NeedsMoreInfo       bool     `json:"needs_more_info"`
	ClarifyingQuestions []string `json:"clarifying_questions"`
	Solution            string   `json:"solution"`
}

// Resolver generates a fresh solution, or clarifying questions, for an
// issue with no adequate historical match.
type Resolver struct {
	chat   llm.ChatClient
	logger *zap.Logger
}

// NewResolver constructs the agent.
func NewResolver(chat llm.ChatClient, logger *zap.Logger) *Resolver {
	return &Resolver{chat: chat, logger: logger}
}

// Resolve runs one structured-output call against the issue
// description. Any failure, transport or schema, maps to
// ErrGenerationUnavailable: generation has no local recovery.
func (a *Resolver) Resolve(ctx context.Context, issueDescription string) (*domain.Resolution, error) {
	userPrompt := "Issue description: " + issueDescription

	raw, err := a.chat.CompleteJSON(ctx, resolverSystemPrompt, userPrompt, resolverSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, err)
	}

	var out resolverOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return nil, fmt.Errorf("%w: resolver returned invalid JSON: %v", domain.ErrGenerationUnavailable, err)
	}

	return &domain.Resolution{
		NeedsMoreInfo:       out.NeedsMoreInfo,
		ClarifyingQuestions: out.ClarifyingQuestions,
		Solution:            out.Solution,
	}, nil
}
