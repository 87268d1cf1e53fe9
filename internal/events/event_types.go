package events

import (
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTransitionRecorded EventType = "transition_recorded"
	EventSLAApproaching     EventType = "sla_approaching"
	EventSLAEscalated       EventType = "sla_escalated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TransitionRecordedPayload payload.
type TransitionRecordedPayload struct {
	HistoryID  string                  `json:"history_id"`
	FromState  string                  `json:"from_state"`
	ToState    string                  `json:"to_state"`
	EventName  string                  `json:"event_name"`
	Status     domain.TransitionStatus `json:"status"`
	SLADueDate *time.Time              `json:"sla_due_date,omitempty"`
}

// SLAApproachingPayload payload.
type SLAApproachingPayload struct {
	HistoryID  string    `json:"history_id"`
	ToState    string    `json:"to_state"`
	SLADueDate time.Time `json:"sla_due_date"`
}

// SLAEscalatedPayload payload.
type SLAEscalatedPayload struct {
	HistoryID  string     `json:"history_id"`
	ToState    string     `json:"to_state"`
	SLADueDate *time.Time `json:"sla_due_date,omitempty"`
}
