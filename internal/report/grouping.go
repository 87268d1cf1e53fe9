package report

import "github.com/spec-kit/workflow-service/internal/domain"

// UnassignedKey is the sentinel group for tickets without an assignee.
const UnassignedKey = "Unassigned"

// GroupDimension selects which ticket attribute drives grouping.
type GroupDimension string

const (
	GroupByAssignee GroupDimension = "assignee"
	GroupByStatus   GroupDimension = "status"
	GroupByPriority GroupDimension = "priority"
)

// Grouped holds a partitioned collection. Keys appear in the order they were
// first encountered; items within a group keep their input order.
type Grouped[T any] struct {
	Keys   []string
	Groups map[string][]T
}

// Get returns the group for key, or nil when absent.
func (g Grouped[T]) Get(key string) []T {
	return g.Groups[key]
}

// Len returns the number of distinct groups.
func (g Grouped[T]) Len() int {
	return len(g.Keys)
}

// GroupBy partitions items by the key function, preserving first-seen key
// order and in-group input order.
func GroupBy[T any](items []T, key func(T) string) Grouped[T] {
	grouped := Grouped[T]{Groups: make(map[string][]T)}
	for _, item := range items {
		k := key(item)
		if _, seen := grouped.Groups[k]; !seen {
			grouped.Keys = append(grouped.Keys, k)
		}
		grouped.Groups[k] = append(grouped.Groups[k], item)
	}
	return grouped
}

// TicketKeyFunc resolves the grouping key function for a dimension.
// Unknown dimensions fall back to assignee grouping.
func TicketKeyFunc(dimension GroupDimension) func(*domain.Ticket) string {
	switch dimension {
	case GroupByStatus:
		return func(t *domain.Ticket) string { return t.CurrentStateName }
	case GroupByPriority:
		return func(t *domain.Ticket) string { return string(t.Priority) }
	default:
		return func(t *domain.Ticket) string {
			if t.AssigneeID == nil || *t.AssigneeID == "" {
				return UnassignedKey
			}
			return *t.AssigneeID
		}
	}
}

// GroupTickets partitions tickets by the requested dimension.
func GroupTickets(tickets []domain.Ticket, dimension GroupDimension) Grouped[*domain.Ticket] {
	key := TicketKeyFunc(dimension)
	refs := make([]*domain.Ticket, 0, len(tickets))
	for i := range tickets {
		refs = append(refs, &tickets[i])
	}
	return GroupBy(refs, key)
}
