package report

import (
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// Granularity is the calendar unit used to split a date range into periods.
type Granularity string

const (
	GranularityWeek  Granularity = "WEEK"
	GranularityMonth Granularity = "MONTH"
	GranularityYear  Granularity = "YEAR"
)

// ParseGranularity maps a request parameter onto a Granularity.
func ParseGranularity(raw string) (Granularity, bool) {
	switch Granularity(raw) {
	case GranularityWeek, GranularityMonth, GranularityYear:
		return Granularity(raw), true
	}
	return "", false
}

// Period is a derived calendar span with inclusive bounds. Periods are never
// persisted; equality is defined by (Start, End) alone.
type Period struct {
	Start time.Time
	End   time.Time
	Label string
}

// Bounds is the comparable identity of a Period, used as a map key so that
// two periods with identical bounds are treated as the same period even when
// constructed independently.
type Bounds struct {
	Start time.Time
	End   time.Time
}

// Key returns the period's map-key identity.
func (p Period) Key() Bounds {
	return Bounds{Start: p.Start, End: p.End}
}

// Equal reports whether both periods cover the same span. Labels are ignored.
func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

// Contains reports whether d falls within the period's inclusive bounds.
func (p Period) Contains(d time.Time) bool {
	d = Date(d.Year(), d.Month(), d.Day())
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns the number of calendar days the period spans.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// Date builds a UTC-midnight timestamp for the given calendar day. All period
// arithmetic normalizes through this so map-key equality behaves.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

const dayLayout = "2006-01-02"

// GeneratePeriods splits [from, to] into an ordered, contiguous,
// non-overlapping sequence of calendar periods at the requested granularity.
// Only the first and last periods may be partial; together the periods cover
// the range exactly. Fails when from is after to.
func GeneratePeriods(from, to time.Time, granularity Granularity) ([]Period, error) {
	from = Date(from.Year(), from.Month(), from.Day())
	to = Date(to.Year(), to.Month(), to.Day())
	if from.After(to) {
		return nil, apperrors.NewInvalidRange(from.Format(dayLayout), to.Format(dayLayout))
	}

	switch granularity {
	case GranularityWeek:
		return weekPeriods(from, to), nil
	case GranularityMonth:
		return monthPeriods(from, to), nil
	case GranularityYear:
		return yearPeriods(from, to), nil
	default:
		return nil, apperrors.NewValidationError("unknown granularity", map[string]any{"granularity": string(granularity)})
	}
}

func monthPeriods(from, to time.Time) []Period {
	var periods []Period
	current := Date(from.Year(), from.Month(), 1)
	for !current.After(to) {
		monthEnd := current.AddDate(0, 1, -1)
		start := current
		if start.Before(from) {
			start = from
		}
		end := monthEnd
		if end.After(to) {
			end = to
		}
		periods = append(periods, Period{
			Start: start,
			End:   end,
			Label: fmt.Sprintf("%s %d", current.Month(), current.Year()),
		})
		current = current.AddDate(0, 1, 0)
	}
	return periods
}

func yearPeriods(from, to time.Time) []Period {
	var periods []Period
	for year := from.Year(); year <= to.Year(); year++ {
		start := Date(year, time.January, 1)
		if start.Before(from) {
			start = from
		}
		end := Date(year, time.December, 31)
		if end.After(to) {
			end = to
		}
		periods = append(periods, Period{Start: start, End: end, Label: strconv.Itoa(year)})
	}
	return periods
}

func weekPeriods(from, to time.Time) []Period {
	var periods []Period

	// ISO weeks start on Monday; back up to the Monday on-or-before from.
	weekStart := from
	for weekStart.Weekday() != time.Monday {
		weekStart = weekStart.AddDate(0, 0, -1)
	}

	for !weekStart.After(to) {
		weekEnd := weekStart.AddDate(0, 0, 6)
		if !weekEnd.Before(from) {
			start := weekStart
			if start.Before(from) {
				start = from
			}
			end := weekEnd
			if end.After(to) {
				end = to
			}
			isoYear, isoWeek := weekStart.ISOWeek()
			label := fmt.Sprintf("Week %d, %d", isoWeek, isoYear)
			if end.Sub(start).Hours()/24+1 < 7 {
				label += fmt.Sprintf(" (Partial: %s to %s)", start.Format(dayLayout), end.Format(dayLayout))
			}
			periods = append(periods, Period{Start: start, End: end, Label: label})
		}
		weekStart = weekStart.AddDate(0, 0, 7)
	}
	return periods
}

// PeriodFor returns the first period whose bounds contain the completion
// date. Tickets without a completion date never match.
func PeriodFor(periods []Period, completedOn *time.Time) (Period, bool) {
	if completedOn == nil {
		return Period{}, false
	}
	for _, period := range periods {
		if period.Contains(*completedOn) {
			return period, true
		}
	}
	return Period{}, false
}
