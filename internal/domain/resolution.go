package domain

// SolutionSource identifies where a selected solution came from.
type SolutionSource string

const (
	SourceRequesterHistory SolutionSource = "requester_history"
	SourceOtherRequesters  SolutionSource = "other_requesters"
	SourceNewlyGenerated   SolutionSource = "newly_generated"
)

// Classification is the classifier agent's structured verdict on an
// incoming message. Draft is present whenever NeedsTicket is true; a
// true flag with a nil draft is a contract violation recovered by the
// orchestrator.
type Classification struct {
	NeedsTicket      bool
	AssistantMessage string
	Draft            *TicketDraft
}

// Resolution is the resolution agent's structured output for an issue
// with no adequate historical match: either clarifying questions or a
// generated step-by-step solution.
type Resolution struct {
	NeedsMoreInfo       bool
	ClarifyingQuestions []string
	Solution            string
}

// SimilarityHit is one scored candidate from a similarity index.
// Score is a distance: non-negative, lower = more similar. Ephemeral,
// produced per search, never persisted.
type SimilarityHit struct {
	TicketID    string
	RequesterID string
	Description string
	Solution    string
	Score       float64
}

// ResolutionState is the accumulating record threaded through one run.
// Fields are populated monotonically: once set they are appended to or
// left untouched, never cleared, for the duration of the run.
type ResolutionState struct {
	RequesterID string
	Message     string

	NeedsTicket      bool
	AssistantMessage string

	Draft    *TicketDraft
	TicketID string

	RequesterHits []SimilarityHit
	OtherHits     []SimilarityHit

	Solution             string
	Source               SolutionSource
	NeedsConfirmation    bool
	ConfirmationQuestion string

	Reply string
}
