package dto

import (
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// RecordTransitionRequest payload.
type RecordTransitionRequest struct {
	FromStateID string `json:"from_state_id"`
	ToStateID   string `json:"to_state_id"`
}

// TransitionHistoryResponse represents one recorded transition.
type TransitionHistoryResponse struct {
	ID             string                  `json:"id"`
	TicketID       string                  `json:"ticket_id"`
	FromStateID    string                  `json:"from_state_id"`
	FromStateName  string                  `json:"from_state_name"`
	ToStateID      string                  `json:"to_state_id"`
	ToStateName    string                  `json:"to_state_name"`
	EventName      string                  `json:"event_name"`
	TransitionDate time.Time               `json:"transition_date"`
	SLADueDate     *time.Time              `json:"sla_due_date,omitempty"`
	Status         domain.TransitionStatus `json:"status"`
}

// FromHistory maps a domain history row to its response form.
func FromHistory(h *domain.WorkflowTransitionHistory) TransitionHistoryResponse {
	return TransitionHistoryResponse{
		ID:             h.ID,
		TicketID:       h.TicketID,
		FromStateID:    h.FromStateID,
		FromStateName:  h.FromStateName,
		ToStateID:      h.ToStateID,
		ToStateName:    h.ToStateName,
		EventName:      h.EventName,
		TransitionDate: h.TransitionDate,
		SLADueDate:     h.SLADueDate,
		Status:         h.Status,
	}
}

// FromHistories maps a slice of history rows.
func FromHistories(entries []domain.WorkflowTransitionHistory) []TransitionHistoryResponse {
	resp := make([]TransitionHistoryResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, FromHistory(&entries[i]))
	}
	return resp
}
