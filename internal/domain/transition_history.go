package domain

import "time"

// TransitionStatus tracks the SLA lifecycle of a recorded transition.
type TransitionStatus string

const (
	TransitionStatusInProgress TransitionStatus = "In_Progress"
	TransitionStatusCompleted  TransitionStatus = "Completed"
	TransitionStatusEscalated  TransitionStatus = "Escalated"
)

// WorkflowTransitionHistory is an immutable audit record created once per
// applied transition. Status is fixed at creation (Completed when the target
// state is final, In_Progress otherwise) and mutated at most once, to
// Escalated, by the SLA monitor or an operator.
type WorkflowTransitionHistory struct {
	ID             string
	TicketID       string
	FromStateID    string
	FromStateName  string
	ToStateID      string
	ToStateName    string
	EventName      string
	TransitionDate time.Time
	SLADueDate     *time.Time
	Status         TransitionStatus
}
