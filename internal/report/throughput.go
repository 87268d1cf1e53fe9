package report

import (
	"context"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// DefaultWindowSize bounds how many tickets a single window fetch may return.
const DefaultWindowSize = 50

// TicketWindowSource supplies completed tickets in fixed-size windows ordered
// by a monotonic cursor (ticket id ascending). The cursor guarantees each
// ticket is visited at most once; under concurrent writes to the backing
// store that guarantee is best-effort and depends on the store's cursor
// semantics.
type TicketWindowSource interface {
	NextWindow(ctx context.Context, cursor string, limit int) (tickets []domain.Ticket, nextCursor string, hasMore bool, err error)
}

// ThroughputCounts accumulates per-period completion counts. Ordered keeps
// the generated period order for deterministic rendering; Counts keys by the
// period's bounds so independently constructed periods with identical spans
// hit the same cell.
type ThroughputCounts struct {
	Ordered []Period
	Counts  map[Bounds]int
}

// Count returns the accumulated throughput for a period.
func (t ThroughputCounts) Count(p Period) int {
	return t.Counts[p.Key()]
}

// AccumulateThroughput streams tickets from the source one window at a time,
// assigning each ticket's completion date to its period and incrementing that
// period's counter. Tickets that match no period are dropped from the count.
// Memory residency is one window of tickets plus the O(#periods) accumulator;
// the next window is never requested before the current one is consumed.
func AccumulateThroughput(ctx context.Context, src TicketWindowSource, periods []Period, windowSize int) (ThroughputCounts, error) {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	acc := ThroughputCounts{
		Ordered: periods,
		Counts:  make(map[Bounds]int, len(periods)),
	}
	for _, p := range periods {
		acc.Counts[p.Key()] = 0
	}

	cursor := ""
	for {
		window, nextCursor, hasMore, err := src.NextWindow(ctx, cursor, windowSize)
		if err != nil {
			return ThroughputCounts{}, err
		}
		for i := range window {
			if period, ok := PeriodFor(periods, window[i].CompletionDate); ok {
				acc.Counts[period.Key()]++
			}
		}
		if !hasMore {
			return acc, nil
		}
		cursor = nextCursor
	}
}
