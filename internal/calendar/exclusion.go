package calendar

import (
	"time"

	"github.com/username/cycle-day-bot/pkg/dateutil"
)

// DateRange is a closed interval of calendar dates. Start <= End is the
// caller's responsibility.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange creates a range from start to end inclusive
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: dateutil.Date(start), End: dateutil.Date(end)}
}

// Includes reports whether Start <= date <= End
func (r DateRange) Includes(date time.Time) bool {
	d := dateutil.Date(date)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Exclusion suspends the normal cycle on a date range in favor of a fixed Day
type Exclusion struct {
	DateRange
	day Day
}

// NewExclusion creates an exclusion covering start..end
func NewExclusion(start, end time.Time, day Day) Exclusion {
	return Exclusion{
		DateRange: NewDateRange(start, end),
		day:       CloneDay(day),
	}
}

// NewSingleDayExclusion creates an exclusion covering one date
func NewSingleDayExclusion(date time.Time, day Day) Exclusion {
	return NewExclusion(date, date, day)
}

// IncludedDay returns a copy of the day this exclusion substitutes
func (e Exclusion) IncludedDay() Day {
	return CloneDay(e.day)
}
