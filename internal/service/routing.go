package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/support-resolver/internal/domain"
)

// ConfirmationQuestion is asked before reusing another requester's
// solution: cross-requester reuse carries a risk of context mismatch.
const ConfirmationQuestion = "Does this match what you're seeing (e.g., same error message / same login method / same device)?"

// NeedMoreInfoLead prefixes a clarifying-questions reply. The
// persistence step recognizes it and suppresses ticket closure.
const NeedMoreInfoLead = "I need a bit more information to resolve this quickly:"

const (
	sourceLabelRequesterHistory = "from your previous ticket history"
	sourceLabelOtherRequesters  = "from other users' resolved tickets"
)

// routeDecision is the outcome of the threshold policy for one run.
type routeDecision struct {
	Solution             string
	Source               domain.SolutionSource
	Hit                  *domain.SimilarityHit
	NeedsConfirmation    bool
	ConfirmationQuestion string
}

// routeReuse applies the two-tier threshold policy. Requester-history
// wins unconditionally when its best hit is within the threshold, even
// if other-requesters has a better score; cross-requester reuse is
// gated behind a confirmation question. Returns nil when neither
// partition qualifies and the run must fall through to generation.
func routeReuse(requesterHits, otherHits []domain.SimilarityHit, threshold float64, now time.Time) *routeDecision {
	if best := bestWithinThreshold(requesterHits, threshold); best != nil {
		return &routeDecision{
			Solution: formatReusedSolution(best.Solution, sourceLabelRequesterHistory, now),
			Source:   domain.SourceRequesterHistory,
			Hit:      best,
		}
	}
	if best := bestWithinThreshold(otherHits, threshold); best != nil {
		return &routeDecision{
			Solution:             formatReusedSolution(best.Solution, sourceLabelOtherRequesters, now),
			Source:               domain.SourceOtherRequesters,
			Hit:                  best,
			NeedsConfirmation:    true,
			ConfirmationQuestion: ConfirmationQuestion,
		}
	}
	return nil
}

// routeGenerated turns resolver output into a decision: either the
// clarifying-questions reply under the fixed lead-in, or the generated
// solution verbatim.
func routeGenerated(res *domain.Resolution) *routeDecision {
	if res.NeedsMoreInfo && len(res.ClarifyingQuestions) > 0 {
		var b strings.Builder
		b.WriteString(NeedMoreInfoLead)
		for _, q := range res.ClarifyingQuestions {
			b.WriteString("\n- ")
			b.WriteString(q)
		}
		return &routeDecision{
			Solution: b.String(),
			Source:   domain.SourceNewlyGenerated,
		}
	}
	return &routeDecision{
		Solution: res.Solution,
		Source:   domain.SourceNewlyGenerated,
	}
}

// bestWithinThreshold returns the lowest-score hit when it is within
// the distance cutoff. Hits arrive ascending from the retriever, so
// only the head needs checking.
func bestWithinThreshold(hits []domain.SimilarityHit, threshold float64) *domain.SimilarityHit {
	if len(hits) == 0 {
		return nil
	}
	best := hits[0]
	if best.Score <= threshold {
		return &best
	}
	return nil
}

func formatReusedSolution(solution, sourceLabel string, now time.Time) string {
	timestamp := now.UTC().Format("2006-01-02 15:04 UTC")
	return fmt.Sprintf("I found a similar resolved ticket (%s). Here is the proven fix as of %s:\n\n%s",
		sourceLabel, timestamp, solution)
}

// suppressClosure reports whether a newly generated reply must leave
// the ticket open: the fixed lead-in marks a clarification request
// that is still awaiting requester input.
func suppressClosure(solution string) bool {
	return strings.HasPrefix(strings.TrimSpace(solution), "I need a bit more information")
}
