package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-resolver/internal/domain"
)

func TestRouteReusePrefersRequesterHistory(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	requesterHits := []domain.SimilarityHit{
		{TicketID: "own-1", Solution: "clear the session cache", Score: 0.80},
	}
	otherHits := []domain.SimilarityHit{
		{TicketID: "other-1", Solution: "reset MFA enrollment", Score: 0.10},
	}

	decision := routeReuse(requesterHits, otherHits, 0.82, now)
	require.NotNil(t, decision)
	assert.Equal(t, domain.SourceRequesterHistory, decision.Source)
	assert.Equal(t, "own-1", decision.Hit.TicketID)
	assert.False(t, decision.NeedsConfirmation)
	assert.Empty(t, decision.ConfirmationQuestion)
	assert.Contains(t, decision.Solution, "from your previous ticket history")
	assert.Contains(t, decision.Solution, "clear the session cache")
	assert.Contains(t, decision.Solution, "2025-03-10 09:30 UTC")
}

func TestRouteReuseOtherRequestersNeedsConfirmation(t *testing.T) {
	otherHits := []domain.SimilarityHit{
		{TicketID: "other-1", Solution: "reset MFA enrollment", Score: 0.50},
	}

	decision := routeReuse(nil, otherHits, 0.82, time.Now())
	require.NotNil(t, decision)
	assert.Equal(t, domain.SourceOtherRequesters, decision.Source)
	assert.True(t, decision.NeedsConfirmation)
	assert.Equal(t, ConfirmationQuestion, decision.ConfirmationQuestion)
	assert.Contains(t, decision.Solution, "from other users' resolved tickets")
}

func TestRouteReuseThresholdBoundaryIsInclusive(t *testing.T) {
	hits := []domain.SimilarityHit{{TicketID: "own-1", Solution: "fix", Score: 0.82}}

	decision := routeReuse(hits, nil, 0.82, time.Now())
	require.NotNil(t, decision)
	assert.Equal(t, domain.SourceRequesterHistory, decision.Source)
}

func TestRouteReuseNoQualifyingHit(t *testing.T) {
	requesterHits := []domain.SimilarityHit{{TicketID: "own-1", Score: 0.91}}
	otherHits := []domain.SimilarityHit{{TicketID: "other-1", Score: 0.83}}

	assert.Nil(t, routeReuse(requesterHits, otherHits, 0.82, time.Now()))
	assert.Nil(t, routeReuse(nil, nil, 0.82, time.Now()))
}

func TestRouteGeneratedSolution(t *testing.T) {
	decision := routeGenerated(&domain.Resolution{Solution: "1. Reset the password."})
	assert.Equal(t, domain.SourceNewlyGenerated, decision.Source)
	assert.Equal(t, "1. Reset the password.", decision.Solution)
	assert.False(t, decision.NeedsConfirmation)
	assert.Nil(t, decision.Hit)
}

func TestRouteGeneratedClarifyingQuestions(t *testing.T) {
	decision := routeGenerated(&domain.Resolution{
		NeedsMoreInfo:       true,
		ClarifyingQuestions: []string{"Which login method?", "Any error message?"},
	})
	assert.Equal(t, domain.SourceNewlyGenerated, decision.Source)
	assert.True(t, strings.HasPrefix(decision.Solution, NeedMoreInfoLead))
	assert.Contains(t, decision.Solution, "\n- Which login method?")
	assert.Contains(t, decision.Solution, "\n- Any error message?")
}

func TestRouteGeneratedNeedsMoreInfoWithoutQuestions(t *testing.T) {
	// needs_more_info with no questions degrades to whatever solution
	// text the agent produced.
	decision := routeGenerated(&domain.Resolution{NeedsMoreInfo: true, Solution: "try again"})
	assert.Equal(t, "try again", decision.Solution)
}

func TestSuppressClosure(t *testing.T) {
	assert.True(t, suppressClosure(NeedMoreInfoLead+"\n- Which device?"))
	assert.True(t, suppressClosure("  I need a bit more information to resolve this quickly:"))
	assert.False(t, suppressClosure("1. Clear cookies.\n2. Retry login."))
	assert.False(t, suppressClosure(""))
}

func TestComposeReplySkipsBlankParts(t *testing.T) {
	assert.Equal(t, "hello\n\nfix", composeReply("hello", "fix", ""))
	assert.Equal(t, "hello\n\nfix\n\nconfirm?", composeReply("hello", "fix", "confirm?"))
	assert.Equal(t, "fix", composeReply("   ", "fix", ""))
	assert.Equal(t, "", composeReply("", "", ""))
}
