package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// TransitionService records workflow state transitions, computes SLA
// deadlines, and answers SLA violation queries.
type TransitionService struct {
	tickets   repository.TicketRepository
	workflows repository.WorkflowRepository
	history   repository.TransitionHistoryRepository
	metrics   *observability.Metrics
	dispatch  events.Dispatcher
	now       func() time.Time
}

// TransitionDependencies bundles collaborators for the transition service.
type TransitionDependencies struct {
	TicketRepo   repository.TicketRepository
	WorkflowRepo repository.WorkflowRepository
	HistoryRepo  repository.TransitionHistoryRepository
	Metrics      *observability.Metrics
	Dispatcher   events.Dispatcher
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// NewTransitionService constructs the service.
func NewTransitionService(deps TransitionDependencies) *TransitionService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TransitionService{
		tickets:   deps.TicketRepo,
		workflows: deps.WorkflowRepo,
		history:   deps.HistoryRepo,
		metrics:   deps.Metrics,
		dispatch:  deps.Dispatcher,
		now:       now,
	}
}

// RecordTransition resolves the transition definition for the ticket's
// workflow, computes the SLA due date, persists the immutable history record,
// and advances the ticket's current-state reference. No transition definition
// means the move is not permitted; there is no implicit default. The call
// carries no idempotency guarantee: recording the same logical transition
// twice creates two history rows.
func (s *TransitionService) RecordTransition(ctx context.Context, ticketID, fromStateID, toStateID string) (*domain.WorkflowTransitionHistory, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}

	transition, err := s.workflows.FindTransition(ctx, ticket.WorkflowID, fromStateID, toStateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("workflow transition", map[string]any{
				"workflow_id":   ticket.WorkflowID,
				"from_state_id": fromStateID,
				"to_state_id":   toStateID,
			})
		}
		return nil, err
	}

	sourceState, err := s.workflows.GetState(ctx, fromStateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("workflow state", map[string]any{"state_id": fromStateID})
		}
		return nil, err
	}
	targetState, err := s.workflows.GetState(ctx, toStateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("workflow state", map[string]any{"state_id": toStateID})
		}
		return nil, err
	}

	now := s.now()
	var slaDueDate *time.Time
	if transition.HasSLA() {
		due := now.Add(time.Duration(transition.SLADurationHours) * time.Hour)
		slaDueDate = &due
	}

	status := domain.TransitionStatusInProgress
	if targetState.IsFinal {
		status = domain.TransitionStatusCompleted
	}

	record := &domain.WorkflowTransitionHistory{
		TicketID:       ticket.ID,
		FromStateID:    transition.SourceStateID,
		FromStateName:  sourceState.Name,
		ToStateID:      transition.TargetStateID,
		ToStateName:    targetState.Name,
		EventName:      transition.EventName,
		TransitionDate: now,
		SLADueDate:     slaDueDate,
		Status:         status,
	}
	if err := s.history.Create(ctx, record); err != nil {
		return nil, err
	}

	var completionDate *time.Time
	if targetState.IsFinal {
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		completionDate = &day
	}
	if err := s.tickets.UpdateWorkflowState(ctx, ticket.ID, targetState.ID, targetState.IsFinal, completionDate); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTransitionRecorded,
		TicketID: ticket.ID,
		Payload: events.TransitionRecordedPayload{
			HistoryID:  record.ID,
			FromState:  record.FromStateName,
			ToState:    record.ToStateName,
			EventName:  record.EventName,
			Status:     record.Status,
			SLADueDate: record.SLADueDate,
		},
	})
	return record, nil
}

// ListHistoryForTicket returns the ticket's ordered transition audit trail.
func (s *TransitionService) ListHistoryForTicket(ctx context.Context, ticketID string) ([]domain.WorkflowTransitionHistory, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticketID)
}

// ListApproachingViolations returns In_Progress records whose SLA deadline
// falls within the lead window, used to warn before breach.
func (s *TransitionService) ListApproachingViolations(ctx context.Context, leadTime time.Duration) ([]domain.WorkflowTransitionHistory, error) {
	if leadTime < 0 {
		leadTime = 0
	}
	return s.history.ListInProgressDueBefore(ctx, s.now().Add(leadTime))
}

// ListBreachedViolations returns In_Progress records already past their SLA
// deadline and not yet escalated.
func (s *TransitionService) ListBreachedViolations(ctx context.Context) ([]domain.WorkflowTransitionHistory, error) {
	return s.history.ListInProgressDueBefore(ctx, s.now())
}

// Escalate marks a history record Escalated. The status is overwritten
// unconditionally: escalating an already-Escalated or Completed record
// succeeds and leaves the record Escalated.
func (s *TransitionService) Escalate(ctx context.Context, historyID string) (*domain.WorkflowTransitionHistory, error) {
	record, err := s.history.GetByID(ctx, historyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("transition history", map[string]any{"history_id": historyID})
		}
		return nil, err
	}

	if err := s.history.UpdateStatus(ctx, record.ID, domain.TransitionStatusEscalated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("transition history", map[string]any{"history_id": historyID})
		}
		return nil, err
	}
	record.Status = domain.TransitionStatusEscalated
	s.metrics.RecordEscalation()

	s.publishEvent(ctx, events.Event{
		Type:     events.EventSLAEscalated,
		TicketID: record.TicketID,
		Payload: events.SLAEscalatedPayload{
			HistoryID:  record.ID,
			ToState:    record.ToStateName,
			SLADueDate: record.SLADueDate,
		},
	})
	return record, nil
}

func (s *TransitionService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatch == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatch.Publish(ctx, event)
}
