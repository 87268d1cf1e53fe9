package report

import (
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// AgeBucket is a fixed-label classification of a ticket's age in days.
type AgeBucket string

const (
	Bucket0To2   AgeBucket = "0-2days"
	Bucket3To5   AgeBucket = "3-5days"
	Bucket6To10  AgeBucket = "6-10days"
	Bucket11To20 AgeBucket = "11-20days"
	Bucket21To30 AgeBucket = "21-30days"
	Bucket31More AgeBucket = "31moredays"
)

// BucketLabels lists all buckets in ascending age order.
var BucketLabels = []AgeBucket{
	Bucket0To2,
	Bucket3To5,
	Bucket6To10,
	Bucket11To20,
	Bucket21To30,
	Bucket31More,
}

// TicketAge computes a ticket's age in whole days. Completed tickets measure
// from creation to the completion date anchored at end of day UTC; open
// tickets measure to now. The day division truncates toward zero. Negative
// results are possible with inconsistent data and are passed through for
// callers to classify, never clamped.
func TicketAge(ticket *domain.Ticket, now time.Time) int {
	var until time.Time
	if ticket.IsCompleted && ticket.CompletionDate != nil {
		d := *ticket.CompletionDate
		until = time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	} else {
		until = now
	}
	return int(until.Sub(ticket.CreatedAt).Hours() / 24)
}

// BucketFor assigns an age to its bucket. The predicate chain is deliberately
// open-ended: any age not matched by the first five predicates, including
// negative ages, lands in the last bucket.
func BucketFor(age int) AgeBucket {
	switch {
	case age >= 0 && age <= 2:
		return Bucket0To2
	case age > 2 && age <= 5:
		return Bucket3To5
	case age > 5 && age <= 10:
		return Bucket6To10
	case age > 10 && age <= 20:
		return Bucket11To20
	case age > 20 && age <= 30:
		return Bucket21To30
	default:
		return Bucket31More
	}
}

// AgedTicket pairs a ticket with its computed age.
type AgedTicket struct {
	Ticket *domain.Ticket
	Age    int
}

// AgeTickets computes ages for a ticket list, preserving input order.
func AgeTickets(tickets []domain.Ticket, now time.Time) []AgedTicket {
	aged := make([]AgedTicket, 0, len(tickets))
	for i := range tickets {
		aged = append(aged, AgedTicket{Ticket: &tickets[i], Age: TicketAge(&tickets[i], now)})
	}
	return aged
}

// IntoBuckets partitions tickets into the six fixed age buckets, keyed by
// bucket label, preserving input order within each bucket.
func IntoBuckets(tickets []domain.Ticket, now time.Time) map[AgeBucket][]domain.Ticket {
	buckets := make(map[AgeBucket][]domain.Ticket, len(BucketLabels))
	for _, label := range BucketLabels {
		buckets[label] = nil
	}
	for i := range tickets {
		bucket := BucketFor(TicketAge(&tickets[i], now))
		buckets[bucket] = append(buckets[bucket], tickets[i])
	}
	return buckets
}
