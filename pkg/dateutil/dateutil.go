package dateutil

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and cache-key format for calendar dates
const DateLayout = "2006-01-02"

// Date returns the calendar date of t as midnight UTC, dropping time and zone
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDate builds a midnight UTC date
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a date by n calendar days
func AddDays(date time.Time, n int) time.Time {
	return Date(date).AddDate(0, 0, n)
}

// Key formats a date for use as a map key
func Key(date time.Time) string {
	return date.Format(DateLayout)
}

// ISOWeekday returns the Monday-first weekday number (Monday=1 .. Sunday=7)
func ISOWeekday(date time.Time) int {
	weekday := int(date.Weekday())
	if weekday == 0 {
		return 7
	}
	return weekday
}

// IsWeekend returns true if the date is Saturday or Sunday
func IsWeekend(date time.Time) bool {
	return ISOWeekday(date) > 5
}

// ParseDate parses date string in various formats
func ParseDate(dateStr string) (time.Time, error) {
	formats := []string{
		DateLayout,
		"02.01.2006",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05-0700",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return Date(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", dateStr)
}

// ParseExpression resolves a human date expression relative to now.
// Supported: "today", "tomorrow", "yesterday", weekday names ("friday",
// "next monday"), and the absolute forms accepted by ParseDate plus
// "January 2", "Jan 2", "January 2 2006" and "1/2".
func ParseExpression(expr string, now time.Time) (time.Time, error) {
	today := Date(now)
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(expr)))
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("empty date expression")
	}

	switch strings.Join(fields, " ") {
	case "today", "now":
		return today, nil
	case "tomorrow":
		return AddDays(today, 1), nil
	case "yesterday":
		return AddDays(today, -1), nil
	}

	next := false
	if fields[0] == "next" || fields[0] == "this" {
		next = fields[0] == "next"
		fields = fields[1:]
	}
	if len(fields) == 1 {
		if weekday, ok := parseWeekday(fields[0]); ok {
			return upcoming(today, weekday, next), nil
		}
	}

	joined := strings.Join(fields, " ")
	if t, err := ParseDate(joined); err == nil {
		return t, nil
	}

	for _, layout := range []string{"January 2 2006", "Jan 2 2006", "January 2, 2006", "Jan 2, 2006", "1/2/2006"} {
		if t, err := time.Parse(layout, titleMonth(joined)); err == nil {
			return Date(t), nil
		}
	}
	for _, layout := range []string{"January 2", "Jan 2", "1/2"} {
		if t, err := time.Parse(layout, titleMonth(joined)); err == nil {
			return NewDate(today.Year(), t.Month(), t.Day()), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date expression %q", expr)
}

// upcoming returns the next date falling on weekday. A bare weekday name
// resolves to today when it matches; "next" always skips at least one day.
func upcoming(today time.Time, weekday time.Weekday, next bool) time.Time {
	delta := (int(weekday) - int(today.Weekday()) + 7) % 7
	if delta == 0 && next {
		delta = 7
	}
	return AddDays(today, delta)
}

func parseWeekday(s string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, true
		}
	}
	return 0, false
}

func titleMonth(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Today returns today's date (midnight UTC) in the given location
func Today(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return Date(time.Now().In(loc))
}
