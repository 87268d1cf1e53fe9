package domain

import "time"

// TicketPriority enumerates SLA urgency, ordered Low < Medium < High < Critical.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

var priorityRanks = map[TicketPriority]int{
	TicketPriorityLow:      0,
	TicketPriorityMedium:   1,
	TicketPriorityHigh:     2,
	TicketPriorityCritical: 3,
}

// Rank returns the ordinal position of the priority. Unknown values rank below Low.
func (p TicketPriority) Rank() int {
	rank, ok := priorityRanks[p]
	if !ok {
		return -1
	}
	return rank
}

// Ticket is a unit of work moving through a workflow. The reporting and
// transition core only reads it; state changes flow through the transition
// tracker, which updates CurrentStateID and the completion fields.
type Ticket struct {
	ID               string
	Key              string
	ProjectID        string
	IterationID      *string
	WorkflowID       string
	CurrentStateID   string
	CurrentStateName string
	AssigneeID       *string
	Title            string
	Priority         TicketPriority
	Estimate         int
	IsCompleted      bool
	CompletionDate   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
