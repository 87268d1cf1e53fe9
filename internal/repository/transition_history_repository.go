package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// TransitionHistoryRepository stores workflow transition audit records.
type TransitionHistoryRepository interface {
	Create(ctx context.Context, history *domain.WorkflowTransitionHistory) error
	GetByID(ctx context.Context, id string) (*domain.WorkflowTransitionHistory, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkflowTransitionHistory, error)
	// ListInProgressDueBefore returns In_Progress records whose SLA deadline
	// falls on or before the instant. Rows without a deadline never match.
	ListInProgressDueBefore(ctx context.Context, instant time.Time) ([]domain.WorkflowTransitionHistory, error)
	// UpdateStatus overwrites the record's status with a single UPDATE,
	// regardless of its current value.
	UpdateStatus(ctx context.Context, id string, status domain.TransitionStatus) error
}

type transitionHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTransitionHistoryRepository builds repository.
func NewTransitionHistoryRepository(pool *pgxpool.Pool) TransitionHistoryRepository {
	return &transitionHistoryRepository{pool: pool}
}

const historyColumns = `h.id, h.ticket_id, h.from_state_id, fs.state_name, h.to_state_id, ts.state_name,
               h.event_name, h.transition_date, h.sla_due_date, h.status`

const historyBase = `SELECT ` + historyColumns + `
        FROM workflow_transition_history h
        JOIN workflow_states fs ON fs.id = h.from_state_id
        JOIN workflow_states ts ON ts.id = h.to_state_id`

func (r *transitionHistoryRepository) Create(ctx context.Context, history *domain.WorkflowTransitionHistory) error {
	const query = `
        INSERT INTO workflow_transition_history (ticket_id, from_state_id, to_state_id, event_name, transition_date, sla_due_date, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		history.TicketID,
		history.FromStateID,
		history.ToStateID,
		history.EventName,
		history.TransitionDate,
		history.SLADueDate,
		history.Status,
	).Scan(&history.ID)
}

func (r *transitionHistoryRepository) GetByID(ctx context.Context, id string) (*domain.WorkflowTransitionHistory, error) {
	query := historyBase + ` WHERE h.id=$1`
	var history domain.WorkflowTransitionHistory
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&history.ID,
		&history.TicketID,
		&history.FromStateID,
		&history.FromStateName,
		&history.ToStateID,
		&history.ToStateName,
		&history.EventName,
		&history.TransitionDate,
		&history.SLADueDate,
		&history.Status,
	); err != nil {
		return nil, err
	}
	return &history, nil
}

func (r *transitionHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkflowTransitionHistory, error) {
	query := historyBase + ` WHERE h.ticket_id=$1 ORDER BY h.transition_date ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistories(rows)
}

func (r *transitionHistoryRepository) ListInProgressDueBefore(ctx context.Context, instant time.Time) ([]domain.WorkflowTransitionHistory, error) {
	query := historyBase + `
        WHERE h.status=$1 AND h.sla_due_date IS NOT NULL AND h.sla_due_date <= $2
        ORDER BY h.sla_due_date ASC`
	rows, err := r.pool.Query(ctx, query, domain.TransitionStatusInProgress, instant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistories(rows)
}

func (r *transitionHistoryRepository) UpdateStatus(ctx context.Context, id string, status domain.TransitionStatus) error {
	const query = `UPDATE workflow_transition_history SET status=$1 WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanHistories(rows pgx.Rows) ([]domain.WorkflowTransitionHistory, error) {
	var result []domain.WorkflowTransitionHistory
	for rows.Next() {
		var history domain.WorkflowTransitionHistory
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.FromStateID,
			&history.FromStateName,
			&history.ToStateID,
			&history.ToStateName,
			&history.EventName,
			&history.TransitionDate,
			&history.SLADueDate,
			&history.Status,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
