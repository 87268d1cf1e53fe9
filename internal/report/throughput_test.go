package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// fakeWindowSource serves a fixed ticket list in id order and records every
// window request so tests can assert on the iteration protocol.
type fakeWindowSource struct {
	tickets     []domain.Ticket
	calls       int
	outstanding int
	maxResident int
}

func (f *fakeWindowSource) NextWindow(_ context.Context, cursor string, limit int) ([]domain.Ticket, string, bool, error) {
	f.calls++
	f.outstanding++
	if f.outstanding > 1 {
		return nil, "", false, fmt.Errorf("second window requested before first consumed")
	}
	defer func() { f.outstanding-- }()

	start := 0
	if cursor != "" {
		for i := range f.tickets {
			if f.tickets[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(f.tickets) {
		end = len(f.tickets)
	}
	window := f.tickets[start:end]
	if len(window) > f.maxResident {
		f.maxResident = len(window)
	}
	if len(window) == 0 {
		return nil, "", false, nil
	}
	return window, window[len(window)-1].ID, end < len(f.tickets), nil
}

func completedOn(id string, day time.Time) domain.Ticket {
	return domain.Ticket{ID: id, IsCompleted: true, CompletionDate: &day}
}

func TestAccumulateThroughputCountsPerPeriod(t *testing.T) {
	periods, err := GeneratePeriods(Date(2025, time.October, 1), Date(2025, time.November, 30), GranularityMonth)
	require.NoError(t, err)
	require.Len(t, periods, 2)

	src := &fakeWindowSource{}
	for i := 0; i < 6; i++ {
		src.tickets = append(src.tickets, completedOn(fmt.Sprintf("%03d", i), Date(2025, time.November, 15)))
	}
	src.tickets = append(src.tickets, completedOn("oct", Date(2025, time.October, 9)))

	counts, err := AccumulateThroughput(context.Background(), src, periods, 3)
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Count(periods[0]))
	assert.Equal(t, 6, counts.Count(periods[1]))
}

func TestAccumulateThroughputIssuesCeilNOverWCalls(t *testing.T) {
	periods, err := GeneratePeriods(Date(2025, time.January, 1), Date(2025, time.January, 31), GranularityMonth)
	require.NoError(t, err)

	tests := []struct {
		n, w      int
		wantCalls int
	}{
		{n: 10, w: 4, wantCalls: 3},
		{n: 12, w: 4, wantCalls: 3},
		{n: 1, w: 50, wantCalls: 1},
		{n: 0, w: 5, wantCalls: 1},
	}

	for _, tc := range tests {
		src := &fakeWindowSource{}
		for i := 0; i < tc.n; i++ {
			src.tickets = append(src.tickets, completedOn(fmt.Sprintf("%03d", i), Date(2025, time.January, 10)))
		}

		counts, err := AccumulateThroughput(context.Background(), src, periods, tc.w)
		require.NoError(t, err)
		assert.Equal(t, tc.wantCalls, src.calls, "N=%d W=%d", tc.n, tc.w)
		assert.LessOrEqual(t, src.maxResident, tc.w, "window residency bound")
		assert.Equal(t, tc.n, counts.Count(periods[0]))
	}
}

func TestAccumulateThroughputDropsUnmatchedTickets(t *testing.T) {
	periods, err := GeneratePeriods(Date(2025, time.June, 1), Date(2025, time.June, 30), GranularityMonth)
	require.NoError(t, err)

	src := &fakeWindowSource{tickets: []domain.Ticket{
		completedOn("in", Date(2025, time.June, 10)),
		completedOn("before", Date(2025, time.May, 10)),
		{ID: "nodate", IsCompleted: true},
	}}

	counts, err := AccumulateThroughput(context.Background(), src, periods, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Count(periods[0]))
}

func TestAccumulateThroughputZeroesEveryPeriod(t *testing.T) {
	periods, err := GeneratePeriods(Date(2025, time.January, 1), Date(2025, time.March, 31), GranularityMonth)
	require.NoError(t, err)

	counts, err := AccumulateThroughput(context.Background(), &fakeWindowSource{}, periods, 5)
	require.NoError(t, err)
	require.Len(t, counts.Counts, 3)
	for _, p := range periods {
		assert.Zero(t, counts.Count(p))
	}
}

func TestAccumulateThroughputDefaultsWindowSize(t *testing.T) {
	periods, err := GeneratePeriods(Date(2025, time.January, 1), Date(2025, time.January, 31), GranularityMonth)
	require.NoError(t, err)

	src := &fakeWindowSource{}
	for i := 0; i < DefaultWindowSize+1; i++ {
		src.tickets = append(src.tickets, completedOn(fmt.Sprintf("%03d", i), Date(2025, time.January, 5)))
	}

	_, err = AccumulateThroughput(context.Background(), src, periods, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}
