package calendar

import (
	"fmt"
	"strings"
)

// DayType represents the type of day
type DayType int

const (
	DayTypeStandard DayType = iota + 1
	DayTypeHoliday
	DayTypeHalfDay
	DayTypeExamDay
	DayTypeUnknown
)

func (t DayType) String() string {
	switch t {
	case DayTypeStandard:
		return "standard_day"
	case DayTypeHoliday:
		return "holiday"
	case DayTypeHalfDay:
		return "half_day"
	case DayTypeExamDay:
		return "exam_day"
	case DayTypeUnknown:
		return "unknown"
	}
	return fmt.Sprintf("DayType(%d)", int(t))
}

const (
	holidaySuffix = " (No School)"
	unknownSuffix = " (Unknown schedule)"
)

// Day is what a single date resolves to. The set of implementations is
// closed: StandardDay, Holiday, HalfDay, ExamDay and UnknownDay.
type Day interface {
	Type() DayType
	String() string
	isDay()
}

// StandardDay is a numbered position in the rotation
type StandardDay struct {
	Number int
}

// Holiday is a day without classes
type Holiday struct {
	Description string
}

// HalfDay lists the blocks that meet on a shortened day
type HalfDay struct {
	Blocks []string
}

// ExamDay lists the blocks scheduled for testing
type ExamDay struct {
	TestBlocks []string
}

// UnknownDay is a school day whose schedule has not been published
type UnknownDay struct {
	Description string
}

// NewHoliday creates a Holiday, appending the "(No School)" suffix
func NewHoliday(description string) Holiday {
	return Holiday{Description: description + holidaySuffix}
}

// NewUnknownDay creates an UnknownDay, appending the "(Unknown schedule)" suffix
func NewUnknownDay(description string) UnknownDay {
	return UnknownDay{Description: description + unknownSuffix}
}

// Weekend is the fixed value returned for Saturdays and Sundays
func Weekend() Holiday {
	return Holiday{Description: "Weekend"}
}

func (StandardDay) Type() DayType { return DayTypeStandard }
func (Holiday) Type() DayType     { return DayTypeHoliday }
func (HalfDay) Type() DayType     { return DayTypeHalfDay }
func (ExamDay) Type() DayType     { return DayTypeExamDay }
func (UnknownDay) Type() DayType  { return DayTypeUnknown }

func (d StandardDay) String() string { return fmt.Sprintf("Day %d", d.Number) }
func (d Holiday) String() string     { return d.Description }
func (d HalfDay) String() string     { return "Half Day (" + strings.Join(d.Blocks, ", ") + ")" }
func (d ExamDay) String() string     { return "Exam Day (" + strings.Join(d.TestBlocks, ", ") + ")" }
func (d UnknownDay) String() string  { return d.Description }

func (StandardDay) isDay() {}
func (Holiday) isDay()     {}
func (HalfDay) isDay()     {}
func (ExamDay) isDay()     {}
func (UnknownDay) isDay()  {}

// CloneDay returns a copy of d that shares no mutable state with it
func CloneDay(d Day) Day {
	switch v := d.(type) {
	case nil:
		return nil
	case StandardDay:
		return v
	case Holiday:
		return v
	case HalfDay:
		return HalfDay{Blocks: cloneBlocks(v.Blocks)}
	case ExamDay:
		return ExamDay{TestBlocks: cloneBlocks(v.TestBlocks)}
	case UnknownDay:
		return v
	default:
		panic(fmt.Sprintf("calendar: unhandled day variant %T", d))
	}
}

// IsHoliday reports whether d is the Holiday variant
func IsHoliday(d Day) bool {
	_, ok := d.(Holiday)
	return ok
}

func cloneBlocks(blocks []string) []string {
	if blocks == nil {
		return nil
	}
	out := make([]string, len(blocks))
	copy(out, blocks)
	return out
}
