package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// WorkflowRepository resolves workflow states and transition definitions.
// Transition lookup is by exact (workflow, source, target) key; absence
// surfaces as pgx.ErrNoRows, never a fallback definition.
type WorkflowRepository interface {
	GetState(ctx context.Context, stateID string) (*domain.WorkflowState, error)
	FindTransition(ctx context.Context, workflowID, sourceStateID, targetStateID string) (*domain.WorkflowTransition, error)
}

type workflowRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepository builds repository.
func NewWorkflowRepository(pool *pgxpool.Pool) WorkflowRepository {
	return &workflowRepository{pool: pool}
}

func (r *workflowRepository) GetState(ctx context.Context, stateID string) (*domain.WorkflowState, error) {
	const query = `
        SELECT id, workflow_id, state_name, is_initial, is_final
        FROM workflow_states WHERE id=$1`
	var state domain.WorkflowState
	if err := r.pool.QueryRow(ctx, query, stateID).Scan(
		&state.ID,
		&state.WorkflowID,
		&state.Name,
		&state.IsInitial,
		&state.IsFinal,
	); err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *workflowRepository) FindTransition(ctx context.Context, workflowID, sourceStateID, targetStateID string) (*domain.WorkflowTransition, error) {
	const query = `
        SELECT id, workflow_id, source_state_id, target_state_id, event_name, sla_duration_hours
        FROM workflow_transitions
        WHERE workflow_id=$1 AND source_state_id=$2 AND target_state_id=$3`
	var transition domain.WorkflowTransition
	if err := r.pool.QueryRow(ctx, query, workflowID, sourceStateID, targetStateID).Scan(
		&transition.ID,
		&transition.WorkflowID,
		&transition.SourceStateID,
		&transition.TargetStateID,
		&transition.EventName,
		&transition.SLADurationHours,
	); err != nil {
		return nil, err
	}
	return &transition, nil
}
