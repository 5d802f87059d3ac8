package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-resolver/internal/config"
	"github.com/spec-kit/support-resolver/internal/domain"
	"github.com/spec-kit/support-resolver/internal/events"
	"github.com/spec-kit/support-resolver/internal/observability"
	"github.com/spec-kit/support-resolver/internal/similarity"
)

type solutionUpdate struct {
	ticketID   string
	solution   string
	status     domain.TicketStatus
	resolvedAt *time.Time
}

type fakeTicketRepo struct {
	created      []*domain.Ticket
	ownClosed    []domain.Ticket
	otherClosed  []domain.Ticket
	updates      []solutionUpdate
	createErr    error
	listOwnErr   error
	listOtherErr error
	updateErr    error
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if r.createErr != nil {
		return r.createErr
	}
	ticket.ID = fmt.Sprintf("ticket-%d", len(r.created)+1)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.created = append(r.created, ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	for _, t := range r.created {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListByRequester(_ context.Context, _ string, _, _ int) ([]domain.Ticket, error) {
	return nil, nil
}

func (r *fakeTicketRepo) ListClosedByRequester(_ context.Context, _ string, _ int) ([]domain.Ticket, error) {
	if r.listOwnErr != nil {
		return nil, r.listOwnErr
	}
	return r.ownClosed, nil
}

func (r *fakeTicketRepo) ListClosedExcludingRequester(_ context.Context, _ string, _ int) ([]domain.Ticket, error) {
	if r.listOtherErr != nil {
		return nil, r.listOtherErr
	}
	return r.otherClosed, nil
}

func (r *fakeTicketRepo) UpdateSolution(_ context.Context, ticketID, solution string, status domain.TicketStatus, resolvedAt *time.Time) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updates = append(r.updates, solutionUpdate{ticketID: ticketID, solution: solution, status: status, resolvedAt: resolvedAt})
	return nil
}

type fakeClassifier struct {
	classification *domain.Classification
	err            error
}

func (f *fakeClassifier) Classify(context.Context, string) (*domain.Classification, error) {
	return f.classification, f.err
}

type fakeResolver struct {
	resolution *domain.Resolution
	err        error
	calls      int
}

func (f *fakeResolver) Resolve(context.Context, string) (*domain.Resolution, error) {
	f.calls++
	return f.resolution, f.err
}

type stubSearcher struct {
	hits []domain.SimilarityHit
	err  error
}

func (s stubSearcher) Search(context.Context, string, int) ([]domain.SimilarityHit, error) {
	return s.hits, s.err
}

// fakeIndexBuilder returns one queued searcher per Build call, in order:
// requester partition first, then other requesters.
type fakeIndexBuilder struct {
	searchers []stubSearcher
	errs      []error
	calls     int
}

func (f *fakeIndexBuilder) Build(context.Context, []domain.Ticket) (similarity.Searcher, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.searchers) {
		return f.searchers[i], nil
	}
	return stubSearcher{}, nil
}

type eventCollector struct {
	events []events.Event
}

func (c *eventCollector) collect(dispatcher events.Dispatcher) {
	handler := func(_ context.Context, event events.Event) error {
		c.events = append(c.events, event)
		return nil
	}
	dispatcher.Subscribe(events.EventTicketCreated, handler)
	dispatcher.Subscribe(events.EventTicketResolved, handler)
	dispatcher.Subscribe(events.EventResolutionFailed, handler)
}

func (c *eventCollector) typesSeen() []events.EventType {
	types := make([]events.EventType, 0, len(c.events))
	for _, e := range c.events {
		types = append(types, e.Type)
	}
	return types
}

func ticketClassification() *domain.Classification {
	return &domain.Classification{
		NeedsTicket:      true,
		AssistantMessage: "I've logged this login issue.",
		Draft: &domain.TicketDraft{
			Title:       "Cannot log in",
			Description: "Password rejected on every attempt since this morning.",
			Severity:    domain.TicketSeverityHigh,
		},
	}
}

type fixture struct {
	repo       *fakeTicketRepo
	classifier *fakeClassifier
	resolver   *fakeResolver
	builder    *fakeIndexBuilder
	collector  *eventCollector
	metrics    *observability.Metrics
	svc        *ResolutionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:       &fakeTicketRepo{},
		classifier: &fakeClassifier{classification: ticketClassification()},
		resolver:   &fakeResolver{resolution: &domain.Resolution{Solution: "1. Reset the password."}},
		builder:    &fakeIndexBuilder{},
		collector:  &eventCollector{},
		metrics:    observability.NewMetrics(),
	}
	dispatcher := events.NewInMemoryDispatcher()
	f.collector.collect(dispatcher)
	f.svc = NewResolutionService(config.ResolutionConfig{
		SimilarityThreshold: 0.82,
		TopK:                5,
		OwnHistoryLimit:     200,
		OtherHistoryLimit:   400,
	}, ResolutionDependencies{
		TicketRepo:   f.repo,
		Classifier:   f.classifier,
		Resolver:     f.resolver,
		IndexBuilder: f.builder,
		Dispatcher:   dispatcher,
		Metrics:      f.metrics,
	})
	return f
}

func TestResolveReusesRequesterHistory(t *testing.T) {
	f := newFixture(t)
	f.builder.searchers = []stubSearcher{
		{hits: []domain.SimilarityHit{{TicketID: "old-1", Solution: "clear the browser cache", Score: 0.10}}},
		{hits: []domain.SimilarityHit{{TicketID: "other-1", Solution: "reset MFA", Score: 0.05}}},
	}

	state, err := f.svc.Resolve(context.Background(), "user-1", "cannot log in again")
	require.NoError(t, err)

	assert.Equal(t, domain.SourceRequesterHistory, state.Source)
	assert.False(t, state.NeedsConfirmation)
	assert.Contains(t, state.Reply, "from your previous ticket history")
	assert.Contains(t, state.Reply, "clear the browser cache")
	assert.Zero(t, f.resolver.calls)

	require.Len(t, f.repo.updates, 1)
	assert.Equal(t, domain.TicketStatusClosed, f.repo.updates[0].status)
	assert.NotNil(t, f.repo.updates[0].resolvedAt)
	assert.Equal(t, int64(1), f.metrics.ResolutionCount(string(domain.SourceRequesterHistory)))
	assert.Equal(t, []events.EventType{events.EventTicketCreated, events.EventTicketResolved}, f.collector.typesSeen())
}

func TestResolveOtherRequestersAsksConfirmation(t *testing.T) {
	f := newFixture(t)
	f.builder.searchers = []stubSearcher{
		{},
		{hits: []domain.SimilarityHit{{TicketID: "other-1", Solution: "re-enroll the authenticator app", Score: 0.50}}},
	}

	state, err := f.svc.Resolve(context.Background(), "user-1", "OTP never arrives")
	require.NoError(t, err)

	assert.Equal(t, domain.SourceOtherRequesters, state.Source)
	assert.True(t, state.NeedsConfirmation)
	assert.Equal(t, ConfirmationQuestion, state.ConfirmationQuestion)
	assert.Contains(t, state.Reply, ConfirmationQuestion)
	assert.Contains(t, state.Reply, "from other users' resolved tickets")

	// Confirmation gates the conversation, not persistence.
	require.Len(t, f.repo.updates, 1)
	assert.Equal(t, domain.TicketStatusClosed, f.repo.updates[0].status)
}

func TestResolveGeneratesWhenNoHitQualifies(t *testing.T) {
	f := newFixture(t)
	f.builder.searchers = []stubSearcher{
		{hits: []domain.SimilarityHit{{TicketID: "old-1", Score: 0.95}}},
		{hits: []domain.SimilarityHit{{TicketID: "other-1", Score: 0.90}}},
	}

	state, err := f.svc.Resolve(context.Background(), "user-1", "password rejected")
	require.NoError(t, err)

	assert.Equal(t, domain.SourceNewlyGenerated, state.Source)
	assert.Equal(t, 1, f.resolver.calls)
	assert.Contains(t, state.Reply, "1. Reset the password.")
	require.Len(t, f.repo.updates, 1)
}

func TestResolveClarificationKeepsTicketOpen(t *testing.T) {
	f := newFixture(t)
	f.resolver.resolution = &domain.Resolution{
		NeedsMoreInfo:       true,
		ClarifyingQuestions: []string{"Which login method do you use?"},
	}

	state, err := f.svc.Resolve(context.Background(), "user-1", "login broken")
	require.NoError(t, err)

	assert.Contains(t, state.Reply, NeedMoreInfoLead)
	assert.Contains(t, state.Reply, "Which login method do you use?")
	assert.Empty(t, f.repo.updates, "clarification request must not close the ticket")
	require.Len(t, f.collector.events, 2)
	resolved := f.collector.events[1]
	payload, ok := resolved.Payload.(events.TicketResolvedPayload)
	require.True(t, ok)
	assert.False(t, payload.Closed)
}

func TestResolveBlankGeneratedSolutionKeepsTicketOpen(t *testing.T) {
	f := newFixture(t)
	f.resolver.resolution = &domain.Resolution{Solution: "   "}

	_, err := f.svc.Resolve(context.Background(), "user-1", "login broken")
	require.NoError(t, err)
	assert.Empty(t, f.repo.updates)
}

func TestResolveNoTicketNeeded(t *testing.T) {
	f := newFixture(t)
	f.classifier.classification = &domain.Classification{
		NeedsTicket:      false,
		AssistantMessage: "Try clearing your cookies first.",
	}

	state, err := f.svc.Resolve(context.Background(), "user-1", "my screen looks odd")
	require.NoError(t, err)

	assert.Equal(t, "Try clearing your cookies first.", state.Reply)
	assert.Empty(t, state.TicketID)
	assert.Empty(t, f.repo.created)
	assert.Empty(t, f.collector.events)
	assert.Zero(t, f.builder.calls)
}

func TestResolveMalformedClassifierOutputRecovers(t *testing.T) {
	f := newFixture(t)
	f.classifier.classification = &domain.Classification{
		NeedsTicket:      true,
		AssistantMessage: "Let me open a ticket for that.",
	}
	f.classifier.err = fmt.Errorf("%w: needs_ticket=true with no ticket draft", domain.ErrMalformedAgentOutput)

	state, err := f.svc.Resolve(context.Background(), "user-1", "help")
	require.NoError(t, err)

	assert.Equal(t, "Let me open a ticket for that.", state.Reply)
	assert.Empty(t, state.TicketID)
	assert.Empty(t, f.repo.created)
}

func TestResolveMalformedClassifierOutputFallbackMessage(t *testing.T) {
	f := newFixture(t)
	f.classifier.classification = nil
	f.classifier.err = fmt.Errorf("%w: classifier returned invalid JSON", domain.ErrMalformedAgentOutput)

	state, err := f.svc.Resolve(context.Background(), "user-1", "help")
	require.NoError(t, err)
	assert.Equal(t, fallbackAssistantMessage, state.Reply)
}

func TestResolveClassifierUnavailableAborts(t *testing.T) {
	f := newFixture(t)
	f.classifier.classification = nil
	f.classifier.err = fmt.Errorf("%w: timeout", domain.ErrClassificationUnavailable)

	state, err := f.svc.Resolve(context.Background(), "user-1", "help")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrClassificationUnavailable)
	assert.Nil(t, state)
	require.Len(t, f.collector.events, 1)
	assert.Equal(t, events.EventResolutionFailed, f.collector.events[0].Type)
}

func TestResolveStoreFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errors.New("connection refused")

	_, err := f.svc.Resolve(context.Background(), "user-1", "cannot log in")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestResolveHistoryFetchFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.repo.listOtherErr = errors.New("connection reset")

	_, err := f.svc.Resolve(context.Background(), "user-1", "cannot log in")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.Len(t, f.repo.created, 1, "ticket creation precedes history fetch")
}

func TestResolveRetrievalFailureDegradesToGeneration(t *testing.T) {
	f := newFixture(t)
	f.builder.errs = []error{
		fmt.Errorf("%w: embed failed", domain.ErrRetrievalUnavailable),
		fmt.Errorf("%w: embed failed", domain.ErrRetrievalUnavailable),
	}

	state, err := f.svc.Resolve(context.Background(), "user-1", "cannot log in")
	require.NoError(t, err)

	assert.Equal(t, domain.SourceNewlyGenerated, state.Source)
	assert.Empty(t, state.RequesterHits)
	assert.Empty(t, state.OtherHits)
	assert.Equal(t, 1, f.resolver.calls)
}

func TestResolveGenerationFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.resolver.resolution = nil
	f.resolver.err = fmt.Errorf("%w: 503", domain.ErrGenerationUnavailable)

	_, err := f.svc.Resolve(context.Background(), "user-1", "cannot log in")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	assert.Empty(t, f.repo.updates)
}

func TestResolveSameMessageTwiceCreatesTwoTickets(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Resolve(context.Background(), "user-1", "cannot log in")
	require.NoError(t, err)
	second, err := f.svc.Resolve(context.Background(), "user-1", "cannot log in")
	require.NoError(t, err)

	require.Len(t, f.repo.created, 2)
	assert.NotEqual(t, first.TicketID, second.TicketID)
	assert.NotEqual(t, f.repo.created[0].ExternalKey, f.repo.created[1].ExternalKey)
}

func TestResolveReplyMentionsCreatedTicket(t *testing.T) {
	f := newFixture(t)

	state, err := f.svc.Resolve(context.Background(), "user-1", "cannot log in")
	require.NoError(t, err)
	require.Len(t, f.repo.created, 1)
	assert.Contains(t, state.Reply, f.repo.created[0].ExternalKey)
	assert.Contains(t, state.Reply, "Severity: HIGH")
}
