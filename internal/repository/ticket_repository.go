package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// TicketFilter captures the predicate set reports run against.
type TicketFilter struct {
	ProjectID        string
	IterationID      *string
	StateNames       []string
	Priorities       []domain.TicketPriority
	AssigneeIDs      []string
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	IncludeCompleted bool
	CompletedOnly    bool
	CompletedFrom    *time.Time
	CompletedTo      *time.Time
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// UpdateWorkflowState moves the ticket's current-state reference and, when
	// the target state is final, stamps the completion fields. Single UPDATE.
	UpdateWorkflowState(ctx context.Context, ticketID, stateID string, completed bool, completionDate *time.Time) error
	// ListWithFilter is the unbounded fetch used by the aging reports.
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListCompletedWindowed pulls one window of completed tickets ordered by
	// id ascending, starting strictly after the cursor. It returns the page,
	// the cursor for the next window, and whether more rows remain.
	ListCompletedWindowed(ctx context.Context, filter TicketFilter, afterID string, limit int) ([]domain.Ticket, string, bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.ticket_key, t.project_id, t.iteration_id, t.workflow_id,
               t.current_state_id, s.state_name, t.assignee_id, t.title, t.priority,
               t.estimate, t.is_completed, t.completion_date, t.created_at, t.updated_at`

const ticketBase = `SELECT ` + ticketColumns + `
        FROM tickets t
        JOIN workflow_states s ON s.id = t.current_state_id`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := ticketBase + ` WHERE t.id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Key,
		&ticket.ProjectID,
		&ticket.IterationID,
		&ticket.WorkflowID,
		&ticket.CurrentStateID,
		&ticket.CurrentStateName,
		&ticket.AssigneeID,
		&ticket.Title,
		&ticket.Priority,
		&ticket.Estimate,
		&ticket.IsCompleted,
		&ticket.CompletionDate,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateWorkflowState(ctx context.Context, ticketID, stateID string, completed bool, completionDate *time.Time) error {
	const query = `
        UPDATE tickets SET current_state_id=$1, is_completed=$2, completion_date=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, stateID, completed, completionDate, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses, args := buildTicketClauses(filter)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.created_at ASC`, ticketBase, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListCompletedWindowed(ctx context.Context, filter TicketFilter, afterID string, limit int) ([]domain.Ticket, string, bool, error) {
	filter.CompletedOnly = true
	clauses, args := buildTicketClauses(filter)
	if afterID != "" {
		args = append(args, afterID)
		clauses = append(clauses, fmt.Sprintf("t.id > $%d", len(args)))
	}

	// Fetch one extra row so hasMore does not need a second round trip.
	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.id ASC LIMIT %d`,
		ticketBase, strings.Join(clauses, " AND "), limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", false, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, "", false, err
	}

	hasMore := len(tickets) > limit
	if hasMore {
		tickets = tickets[:limit]
	}
	nextCursor := afterID
	if len(tickets) > 0 {
		nextCursor = tickets[len(tickets)-1].ID
	}
	return tickets, nextCursor, hasMore, nil
}

func buildTicketClauses(filter TicketFilter) ([]string, []any) {
	clauses := []string{}
	args := []any{}

	args = append(args, filter.ProjectID)
	clauses = append(clauses, fmt.Sprintf("t.project_id=$%d", len(args)))

	if filter.IterationID != nil {
		args = append(args, *filter.IterationID)
		clauses = append(clauses, fmt.Sprintf("t.iteration_id=$%d", len(args)))
	}
	if len(filter.StateNames) > 0 {
		placeholders := make([]string, len(filter.StateNames))
		for i, name := range filter.StateNames {
			args = append(args, name)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("s.state_name IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.AssigneeIDs) > 0 {
		placeholders := make([]string, len(filter.AssigneeIDs))
		for i, id := range filter.AssigneeIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.assignee_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("t.created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("t.created_at <= $%d", len(args)))
	}
	if filter.CompletedOnly {
		clauses = append(clauses, "t.is_completed = TRUE")
		if filter.CompletedFrom != nil {
			args = append(args, *filter.CompletedFrom)
			clauses = append(clauses, fmt.Sprintf("t.completion_date >= $%d", len(args)))
		}
		if filter.CompletedTo != nil {
			args = append(args, *filter.CompletedTo)
			clauses = append(clauses, fmt.Sprintf("t.completion_date <= $%d", len(args)))
		}
	} else if !filter.IncludeCompleted {
		clauses = append(clauses, "t.is_completed = FALSE")
	}

	return clauses, args
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Key,
			&ticket.ProjectID,
			&ticket.IterationID,
			&ticket.WorkflowID,
			&ticket.CurrentStateID,
			&ticket.CurrentStateName,
			&ticket.AssigneeID,
			&ticket.Title,
			&ticket.Priority,
			&ticket.Estimate,
			&ticket.IsCompleted,
			&ticket.CompletionDate,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
