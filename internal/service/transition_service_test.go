package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket

	lastStateID        string
	lastCompleted      bool
	lastCompletionDate *time.Time
	updateCalls        int
}

func newFakeTicketRepo(tickets ...*domain.Ticket) *fakeTicketRepo {
	repo := &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
	for _, t := range tickets {
		repo.tickets[t.ID] = t
	}
	return repo
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) UpdateWorkflowState(ctx context.Context, ticketID, stateID string, completed bool, completionDate *time.Time) error {
	if _, ok := r.tickets[ticketID]; !ok {
		return pgx.ErrNoRows
	}
	r.updateCalls++
	r.lastStateID = stateID
	r.lastCompleted = completed
	r.lastCompletionDate = completionDate
	r.tickets[ticketID].CurrentStateID = stateID
	r.tickets[ticketID].IsCompleted = completed
	r.tickets[ticketID].CompletionDate = completionDate
	return nil
}

func (r *fakeTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeTicketRepo) ListCompletedWindowed(ctx context.Context, filter repository.TicketFilter, afterID string, limit int) ([]domain.Ticket, string, bool, error) {
	return nil, "", false, nil
}

type fakeWorkflowRepo struct {
	states      map[string]*domain.WorkflowState
	transitions map[string]*domain.WorkflowTransition
}

func newFakeWorkflowRepo() *fakeWorkflowRepo {
	return &fakeWorkflowRepo{
		states:      make(map[string]*domain.WorkflowState),
		transitions: make(map[string]*domain.WorkflowTransition),
	}
}

func (r *fakeWorkflowRepo) addState(s *domain.WorkflowState) {
	r.states[s.ID] = s
}

func (r *fakeWorkflowRepo) addTransition(t *domain.WorkflowTransition) {
	key := fmt.Sprintf("%s|%s|%s", t.WorkflowID, t.SourceStateID, t.TargetStateID)
	r.transitions[key] = t
}

func (r *fakeWorkflowRepo) GetState(ctx context.Context, stateID string) (*domain.WorkflowState, error) {
	state, ok := r.states[stateID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *state
	return &copied, nil
}

func (r *fakeWorkflowRepo) FindTransition(ctx context.Context, workflowID, sourceStateID, targetStateID string) (*domain.WorkflowTransition, error) {
	key := fmt.Sprintf("%s|%s|%s", workflowID, sourceStateID, targetStateID)
	transition, ok := r.transitions[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *transition
	return &copied, nil
}

type fakeHistoryRepo struct {
	records map[string]*domain.WorkflowTransitionHistory
	order   []string
	nextID  int
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{records: make(map[string]*domain.WorkflowTransitionHistory)}
}

func (r *fakeHistoryRepo) Create(ctx context.Context, history *domain.WorkflowTransitionHistory) error {
	r.nextID++
	history.ID = fmt.Sprintf("hist-%d", r.nextID)
	copied := *history
	r.records[history.ID] = &copied
	r.order = append(r.order, history.ID)
	return nil
}

func (r *fakeHistoryRepo) GetByID(ctx context.Context, id string) (*domain.WorkflowTransitionHistory, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (r *fakeHistoryRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkflowTransitionHistory, error) {
	out := []domain.WorkflowTransitionHistory{}
	for _, id := range r.order {
		if r.records[id].TicketID == ticketID {
			out = append(out, *r.records[id])
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) ListInProgressDueBefore(ctx context.Context, instant time.Time) ([]domain.WorkflowTransitionHistory, error) {
	out := []domain.WorkflowTransitionHistory{}
	for _, id := range r.order {
		record := r.records[id]
		if record.Status != domain.TransitionStatusInProgress || record.SLADueDate == nil {
			continue
		}
		if !record.SLADueDate.After(instant) {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) UpdateStatus(ctx context.Context, id string, status domain.TransitionStatus) error {
	record, ok := r.records[id]
	if !ok {
		return pgx.ErrNoRows
	}
	record.Status = status
	return nil
}

type capturedEvents struct {
	dispatcher events.Dispatcher
	seen       []events.Event
}

func captureEvents(types ...events.EventType) *capturedEvents {
	c := &capturedEvents{dispatcher: events.NewInMemoryDispatcher()}
	for _, eventType := range types {
		c.dispatcher.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			c.seen = append(c.seen, event)
			return nil
		})
	}
	return c
}

var transitionNow = time.Date(2025, time.November, 15, 10, 0, 0, 0, time.UTC)

func newTransitionFixture() (*TransitionService, *fakeTicketRepo, *fakeWorkflowRepo, *fakeHistoryRepo, *capturedEvents) {
	tickets := newFakeTicketRepo(&domain.Ticket{
		ID:             "t-1",
		Key:            "PRJ-1",
		ProjectID:      "p-1",
		WorkflowID:     "wf-1",
		CurrentStateID: "st-open",
		Title:          "broken login",
		Priority:       domain.TicketPriorityHigh,
	})

	workflows := newFakeWorkflowRepo()
	workflows.addState(&domain.WorkflowState{ID: "st-open", WorkflowID: "wf-1", Name: "Open", IsInitial: true})
	workflows.addState(&domain.WorkflowState{ID: "st-progress", WorkflowID: "wf-1", Name: "In Progress"})
	workflows.addState(&domain.WorkflowState{ID: "st-done", WorkflowID: "wf-1", Name: "Done", IsFinal: true})
	workflows.addTransition(&domain.WorkflowTransition{
		ID: "tr-1", WorkflowID: "wf-1",
		SourceStateID: "st-open", TargetStateID: "st-progress",
		EventName: "Start", SLADurationHours: 24,
	})
	workflows.addTransition(&domain.WorkflowTransition{
		ID: "tr-2", WorkflowID: "wf-1",
		SourceStateID: "st-progress", TargetStateID: "st-done",
		EventName: "Resolve", SLADurationHours: 0,
	})

	history := newFakeHistoryRepo()
	captured := captureEvents(events.EventTransitionRecorded, events.EventSLAEscalated)

	svc := NewTransitionService(TransitionDependencies{
		TicketRepo:   tickets,
		WorkflowRepo: workflows,
		HistoryRepo:  history,
		Metrics:      observability.NewMetrics(),
		Dispatcher:   captured.dispatcher,
		Now:          func() time.Time { return transitionNow },
	})
	return svc, tickets, workflows, history, captured
}

func TestRecordTransitionComputesSLADueDate(t *testing.T) {
	svc, _, _, _, captured := newTransitionFixture()

	record, err := svc.RecordTransition(context.Background(), "t-1", "st-open", "st-progress")
	require.NoError(t, err)

	assert.Equal(t, "t-1", record.TicketID)
	assert.Equal(t, "Open", record.FromStateName)
	assert.Equal(t, "In Progress", record.ToStateName)
	assert.Equal(t, "Start", record.EventName)
	assert.Equal(t, domain.TransitionStatusInProgress, record.Status)
	require.NotNil(t, record.SLADueDate)
	assert.Equal(t, transitionNow.Add(24*time.Hour), *record.SLADueDate)

	require.Len(t, captured.seen, 1)
	assert.Equal(t, events.EventTransitionRecorded, captured.seen[0].Type)
}

func TestRecordTransitionWithoutSLALeavesDueDateNil(t *testing.T) {
	svc, tickets, _, _, _ := newTransitionFixture()
	tickets.tickets["t-1"].CurrentStateID = "st-progress"

	record, err := svc.RecordTransition(context.Background(), "t-1", "st-progress", "st-done")
	require.NoError(t, err)

	assert.Nil(t, record.SLADueDate)
	assert.Equal(t, domain.TransitionStatusCompleted, record.Status)
}

func TestRecordTransitionIntoFinalStateCompletesTicket(t *testing.T) {
	svc, tickets, _, _, _ := newTransitionFixture()
	tickets.tickets["t-1"].CurrentStateID = "st-progress"

	_, err := svc.RecordTransition(context.Background(), "t-1", "st-progress", "st-done")
	require.NoError(t, err)

	assert.Equal(t, 1, tickets.updateCalls)
	assert.Equal(t, "st-done", tickets.lastStateID)
	assert.True(t, tickets.lastCompleted)
	require.NotNil(t, tickets.lastCompletionDate)
	assert.Equal(t, time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC), *tickets.lastCompletionDate)
}

func TestRecordTransitionNonFinalKeepsTicketOpen(t *testing.T) {
	svc, tickets, _, _, _ := newTransitionFixture()

	_, err := svc.RecordTransition(context.Background(), "t-1", "st-open", "st-progress")
	require.NoError(t, err)

	assert.False(t, tickets.lastCompleted)
	assert.Nil(t, tickets.lastCompletionDate)
}

func TestRecordTransitionUnknownTicket(t *testing.T) {
	svc, _, _, _, _ := newTransitionFixture()

	_, err := svc.RecordTransition(context.Background(), "missing", "st-open", "st-progress")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRecordTransitionUndefinedMove(t *testing.T) {
	svc, _, _, _, _ := newTransitionFixture()

	// Open -> Done has no definition; there is no implicit default.
	_, err := svc.RecordTransition(context.Background(), "t-1", "st-open", "st-done")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRecordTransitionTwiceCreatesTwoRows(t *testing.T) {
	svc, _, _, history, _ := newTransitionFixture()

	_, err := svc.RecordTransition(context.Background(), "t-1", "st-open", "st-progress")
	require.NoError(t, err)
	_, err = svc.RecordTransition(context.Background(), "t-1", "st-open", "st-progress")
	require.NoError(t, err)

	entries, err := svc.ListHistoryForTicket(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Len(t, history.order, 2)
}

func TestListHistoryUnknownTicket(t *testing.T) {
	svc, _, _, _, _ := newTransitionFixture()

	_, err := svc.ListHistoryForTicket(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListApproachingViolations(t *testing.T) {
	svc, _, _, history, _ := newTransitionFixture()

	dueSoon := transitionNow.Add(10 * time.Minute)
	dueLater := transitionNow.Add(2 * time.Hour)
	duePast := transitionNow.Add(-1 * time.Hour)

	require.NoError(t, history.Create(context.Background(), &domain.WorkflowTransitionHistory{
		TicketID: "t-1", Status: domain.TransitionStatusInProgress, SLADueDate: &dueSoon,
	}))
	require.NoError(t, history.Create(context.Background(), &domain.WorkflowTransitionHistory{
		TicketID: "t-1", Status: domain.TransitionStatusInProgress, SLADueDate: &dueLater,
	}))
	require.NoError(t, history.Create(context.Background(), &domain.WorkflowTransitionHistory{
		TicketID: "t-1", Status: domain.TransitionStatusInProgress, SLADueDate: &duePast,
	}))
	require.NoError(t, history.Create(context.Background(), &domain.WorkflowTransitionHistory{
		TicketID: "t-1", Status: domain.TransitionStatusCompleted, SLADueDate: &duePast,
	}))
	require.NoError(t, history.Create(context.Background(), &domain.WorkflowTransitionHistory{
		TicketID: "t-1", Status: domain.TransitionStatusInProgress,
	}))

	approaching, err := svc.ListApproachingViolations(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	// Due within 15 minutes plus the already-overdue record.
	require.Len(t, approaching, 2)

	breached, err := svc.ListBreachedViolations(context.Background())
	require.NoError(t, err)
	require.Len(t, breached, 1)
	assert.Equal(t, duePast, *breached[0].SLADueDate)
}

func TestListApproachingViolationsNegativeLeadClampsToZero(t *testing.T) {
	svc, _, _, history, _ := newTransitionFixture()

	duePast := transitionNow.Add(-time.Minute)
	require.NoError(t, history.Create(context.Background(), &domain.WorkflowTransitionHistory{
		TicketID: "t-1", Status: domain.TransitionStatusInProgress, SLADueDate: &duePast,
	}))

	approaching, err := svc.ListApproachingViolations(context.Background(), -time.Hour)
	require.NoError(t, err)
	assert.Len(t, approaching, 1)
}

func TestEscalateMarksRecordEscalated(t *testing.T) {
	svc, _, _, history, captured := newTransitionFixture()

	due := transitionNow.Add(-time.Hour)
	require.NoError(t, history.Create(context.Background(), &domain.WorkflowTransitionHistory{
		TicketID: "t-1", ToStateName: "In Progress",
		Status: domain.TransitionStatusInProgress, SLADueDate: &due,
	}))

	updated, err := svc.Escalate(context.Background(), "hist-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransitionStatusEscalated, updated.Status)
	assert.Equal(t, domain.TransitionStatusEscalated, history.records["hist-1"].Status)

	require.Len(t, captured.seen, 1)
	assert.Equal(t, events.EventSLAEscalated, captured.seen[0].Type)
}

func TestEscalateOverwritesAnyStatus(t *testing.T) {
	svc, _, _, history, _ := newTransitionFixture()

	require.NoError(t, history.Create(context.Background(), &domain.WorkflowTransitionHistory{
		TicketID: "t-1", Status: domain.TransitionStatusCompleted,
	}))
	require.NoError(t, history.Create(context.Background(), &domain.WorkflowTransitionHistory{
		TicketID: "t-1", Status: domain.TransitionStatusEscalated,
	}))

	for _, id := range []string{"hist-1", "hist-2"} {
		updated, err := svc.Escalate(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.TransitionStatusEscalated, updated.Status)
	}
}

func TestEscalateUnknownHistory(t *testing.T) {
	svc, _, _, _, _ := newTransitionFixture()

	_, err := svc.Escalate(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
