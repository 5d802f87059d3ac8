package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-resolver/internal/config"
	"github.com/spec-kit/support-resolver/internal/domain"
	"github.com/spec-kit/support-resolver/internal/events"
	"github.com/spec-kit/support-resolver/internal/observability"
	"github.com/spec-kit/support-resolver/internal/repository"
	"github.com/spec-kit/support-resolver/internal/similarity"
)

// fallbackAssistantMessage covers the rare case where the classifier's
// output is malformed and carries no usable assistant message.
const fallbackAssistantMessage = "Sorry, I couldn't process that message. Could you describe the issue again?"

// ClassifierAgent maps raw user text to a ticket-worthiness verdict.
type ClassifierAgent interface {
	Classify(ctx context.Context, message string) (*domain.Classification, error)
}

// ResolverAgent generates a fresh solution or clarifying questions.
type ResolverAgent interface {
	Resolve(ctx context.Context, issueDescription string) (*domain.Resolution, error)
}

// ResolutionService runs the ticket-resolution workflow: classify →
// create ticket → fetch both history partitions → build both indexes →
// threshold routing → compose reply → persist outcome. One call to
// Resolve is one run; runs share no in-process state.
type ResolutionService struct {
	tickets    repository.TicketRepository
	classifier ClassifierAgent
	resolver   ResolverAgent
	indexes    similarity.IndexBuilder
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.ResolutionConfig
	now        func() time.Time
}

// ResolutionDependencies bundles collaborators for the service.
type ResolutionDependencies struct {
	TicketRepo   repository.TicketRepository
	Classifier   ClassifierAgent
	Resolver     ResolverAgent
	IndexBuilder similarity.IndexBuilder
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewResolutionService constructs the service.
func NewResolutionService(cfg config.ResolutionConfig, deps ResolutionDependencies) *ResolutionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolutionService{
		tickets:    deps.TicketRepo,
		classifier: deps.Classifier,
		resolver:   deps.Resolver,
		indexes:    deps.IndexBuilder,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Resolve executes one run for an incoming message. The returned state
// is accumulate-only: each stage adds fields, none are cleared. Runs
// are deliberately not idempotent — the same message twice creates two
// independent tickets.
func (s *ResolutionService) Resolve(ctx context.Context, requesterID, message string) (*domain.ResolutionState, error) {
	st := &domain.ResolutionState{
		RequesterID: requesterID,
		Message:     message,
	}

	cls, err := s.classifier.Classify(ctx, message)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedAgentOutput) {
			// Contract violation, recovered locally: proceed as if no
			// ticket is needed and surface the assistant message as-is.
			s.logger.Warn("classifier output malformed; no ticket created",
				zap.String("requester_id", requesterID),
				zap.Error(err))
			if cls != nil {
				st.AssistantMessage = cls.AssistantMessage
			}
			if strings.TrimSpace(st.AssistantMessage) == "" {
				st.AssistantMessage = fallbackAssistantMessage
			}
			st.Reply = st.AssistantMessage
			return st, nil
		}
		s.publishFailure(ctx, requesterID, "", "classify", err)
		return nil, err
	}

	st.NeedsTicket = cls.NeedsTicket
	st.AssistantMessage = cls.AssistantMessage
	if !cls.NeedsTicket {
		st.Reply = st.AssistantMessage
		return st, nil
	}
	st.Draft = cls.Draft

	ticket, err := s.createTicket(ctx, requesterID, cls.Draft)
	if err != nil {
		s.publishFailure(ctx, requesterID, "", "create_ticket", err)
		return nil, err
	}
	st.TicketID = ticket.ID
	st.AssistantMessage += fmt.Sprintf("\n\nCreated ticket `%s` (Severity: %s, Status: %s).",
		ticket.ExternalKey, ticket.Severity, ticket.Status)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    userActor(requesterID),
		Payload: events.TicketCreatedPayload{
			ExternalKey: ticket.ExternalKey,
			Severity:    ticket.Severity,
			Title:       ticket.Title,
		},
	})

	ownClosed, err := s.tickets.ListClosedByRequester(ctx, requesterID, s.cfg.OwnHistoryLimit)
	if err != nil {
		err = fmt.Errorf("%w: list requester history: %v", domain.ErrStoreUnavailable, err)
		s.publishFailure(ctx, requesterID, ticket.ID, "fetch_history", err)
		return nil, err
	}
	otherClosed, err := s.tickets.ListClosedExcludingRequester(ctx, requesterID, s.cfg.OtherHistoryLimit)
	if err != nil {
		err = fmt.Errorf("%w: list other-requester history: %v", domain.ErrStoreUnavailable, err)
		s.publishFailure(ctx, requesterID, ticket.ID, "fetch_history", err)
		return nil, err
	}

	issue := cls.Draft.Description
	st.RequesterHits = s.searchPartition(ctx, "requester_history", ownClosed, issue)
	st.OtherHits = s.searchPartition(ctx, "other_requesters", otherClosed, issue)

	decision := routeReuse(st.RequesterHits, st.OtherHits, s.cfg.SimilarityThreshold, s.now())
	if decision == nil {
		res, err := s.resolver.Resolve(ctx, issue)
		if err != nil {
			s.publishFailure(ctx, requesterID, ticket.ID, "generate", err)
			return nil, err
		}
		decision = routeGenerated(res)
	}

	st.Solution = decision.Solution
	st.Source = decision.Source
	st.NeedsConfirmation = decision.NeedsConfirmation
	st.ConfirmationQuestion = decision.ConfirmationQuestion
	st.Reply = composeReply(st.AssistantMessage, st.Solution, st.ConfirmationQuestion)

	closed, err := s.persistResolution(ctx, st)
	if err != nil {
		s.publishFailure(ctx, requesterID, ticket.ID, "persist", err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordResolution(string(st.Source))
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticket.ID,
		Actor:    userActor(requesterID),
		Payload: events.TicketResolvedPayload{
			Source:            st.Source,
			Score:             decisionScore(decision),
			NeedsConfirmation: st.NeedsConfirmation,
			Closed:            closed,
		},
	})
	return st, nil
}

func (s *ResolutionService) createTicket(ctx context.Context, requesterID string, draft *domain.TicketDraft) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		RequesterID: requesterID,
		Title:       strings.TrimSpace(draft.Title),
		Description: strings.TrimSpace(draft.Description),
		Severity:    draft.Severity,
		Status:      domain.TicketStatusOpen,
	}
	if ticket.Severity == "" {
		ticket.Severity = domain.TicketSeverityMedium
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("%w: create ticket: %v", domain.ErrStoreUnavailable, err)
	}
	return ticket, nil
}

// searchPartition builds a fresh index over one partition snapshot and
// queries it. Retrieval failures degrade to zero hits: losing
// retrieval should not block the requester from getting a fresh
// answer. Explicit policy, not a silent swallow — always logged.
func (s *ResolutionService) searchPartition(ctx context.Context, partition string, tickets []domain.Ticket, query string) []domain.SimilarityHit {
	index, err := s.indexes.Build(ctx, tickets)
	if err != nil {
		s.logger.Warn("similarity index unavailable; treating partition as empty",
			zap.String("partition", partition),
			zap.Error(err))
		return nil
	}
	hits, err := index.Search(ctx, query, s.cfg.TopK)
	if err != nil {
		s.logger.Warn("similarity search unavailable; treating partition as empty",
			zap.String("partition", partition),
			zap.Error(err))
		return nil
	}
	return hits
}

// persistResolution applies the closure decision to the created
// ticket. Reused solutions always close it; a generated solution
// closes it only when non-blank and not a clarification request. A
// ticket is never closed with an empty solution.
func (s *ResolutionService) persistResolution(ctx context.Context, st *domain.ResolutionState) (bool, error) {
	if st.TicketID == "" {
		return false, nil
	}
	if st.Source == domain.SourceNewlyGenerated {
		if suppressClosure(st.Solution) {
			return false, nil
		}
		if strings.TrimSpace(st.Solution) == "" {
			return false, nil
		}
	}
	resolvedAt := s.now()
	if err := s.tickets.UpdateSolution(ctx, st.TicketID, st.Solution, domain.TicketStatusClosed, &resolvedAt); err != nil {
		return false, fmt.Errorf("%w: close ticket: %v", domain.ErrStoreUnavailable, err)
	}
	return true, nil
}

// composeReply concatenates the classifier's message, the selected
// solution, and the confirmation question, blank-line separated.
func composeReply(assistantMessage, solution, confirmationQuestion string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{assistantMessage, solution, confirmationQuestion} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (s *ResolutionService) publishFailure(ctx context.Context, requesterID, ticketID, stage string, err error) {
	s.logger.Error("resolution run failed",
		zap.String("requester_id", requesterID),
		zap.String("stage", stage),
		zap.Error(err))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventResolutionFailed,
		TicketID: ticketID,
		Actor:    userActor(requesterID),
		Payload: events.ResolutionFailedPayload{
			Stage:  stage,
			Reason: err.Error(),
		},
	})
}

func (s *ResolutionService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func decisionScore(decision *routeDecision) *float64 {
	if decision == nil || decision.Hit == nil {
		return nil
	}
	score := decision.Hit.Score
	return &score
}

func userActor(userID string) events.Actor {
	return events.Actor{
		Type:   domain.SubjectTypeUser,
		UserID: &userID,
	}
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
